// Package dynamo is a store.Store on a single DynamoDB table keyed by PK/SK.
//
// Lists scan by entity type and sort in process with the shared store
// comparators, so ordering matches the memory backend. Counter updates use
// atomic ADD expressions; multi-item writes (an answer plus its question's
// count) are not transactional.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/tagcache/internal/domain"
	"github.com/unkn0wn-root/tagcache/internal/store"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type Store struct {
	api   API
	table string
	log   *zap.Logger
}

var _ store.Store = (*Store)(nil)

func New(api API, table string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{api: api, table: table, log: log.Named("dynamo")}
}

// Open builds a client from the default AWS config chain. endpoint overrides
// the service URL (DynamoDB Local).
func Open(ctx context.Context, region, endpoint, table string, log *zap.Logger) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, table, log), nil
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (s *Store) get(ctx context.Context, pk, sk string, out any) (bool, error) {
	res, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("get %s: %w", pk, err)
	}
	if res.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", pk, err)
	}
	return true, nil
}

// create writes item only if its key is free.
func (s *Store) create(ctx context.Context, item any, what string) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", what, err)
	}
	cond := expression.AttributeNotExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("%w: %s exists", domain.ErrInvalid, what)
	}
	if err != nil {
		return fmt.Errorf("put %s: %w", what, err)
	}
	return nil
}

// update applies upd to an existing item; a missing item is ErrNotFound.
func (s *Store) update(ctx context.Context, pk string, upd expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().
		WithUpdate(upd).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return err
	}
	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key(pk, skMeta),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("%s: %w", pk, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", pk, err)
	}
	return nil
}

func (s *Store) addCounters(ctx context.Context, pk string, deltas map[string]int) error {
	var upd expression.UpdateBuilder
	names := make([]string, 0, len(deltas))
	for n, d := range deltas {
		if d != 0 {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	for _, n := range names {
		upd = upd.Add(expression.Name(n), expression.Value(deltas[n]))
	}
	return s.update(ctx, pk, upd)
}

func (s *Store) del(ctx context.Context, pk, sk string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key(pk, sk),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", pk, err)
	}
	return nil
}

// scanType pages through every item of typ. Items are re-checked in process
// after decoding.
func (s *Store) scanType(ctx context.Context, typ string) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("Type").Equal(expression.Value(typ))).
		Build()
	if err != nil {
		return nil, err
	}
	in := &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	var items []map[string]types.AttributeValue
	for {
		out, err := s.api.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", typ, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *Store) requireUser(ctx context.Context, id string) error {
	var u userItem
	ok, err := s.get(ctx, entityPK(typeUser, id), skMeta, &u)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %q: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalid)
	}
	return s.create(ctx, toUserItem(u), "user "+u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	var it userItem
	ok, err := s.get(ctx, entityPK(typeUser, id), skMeta, &it)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, fmt.Errorf("user %q: %w", id, domain.ErrNotFound)
	}
	return it.domain(), nil
}

func (s *Store) CreateQuestion(ctx context.Context, q domain.Question) error {
	if q.ID == "" {
		return fmt.Errorf("%w: question id is required", domain.ErrInvalid)
	}
	if err := s.requireUser(ctx, q.UserID); err != nil {
		return err
	}
	return s.create(ctx, toQuestionItem(q), "question "+q.ID)
}

// UpdateQuestion rewrites the editable fields only.
func (s *Store) UpdateQuestion(ctx context.Context, q domain.Question) error {
	upd := expression.Set(expression.Name("Title"), expression.Value(q.Title)).
		Set(expression.Name("Body"), expression.Value(q.Body)).
		Set(expression.Name("Tags"), expression.Value(q.Tags)).
		Set(expression.Name("UpdatedAt"), expression.Value(q.UpdatedAt))
	return s.update(ctx, entityPK(typeQuestion, q.ID), upd)
}

func (s *Store) DeleteQuestion(ctx context.Context, id string) (domain.Question, []domain.Answer, error) {
	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, nil, err
	}
	answers, err := s.listAnswers(ctx)
	if err != nil {
		return domain.Question{}, nil, err
	}
	var gone []domain.Answer
	for _, a := range answers {
		if a.QuestionID != id {
			continue
		}
		if err := s.del(ctx, entityPK(typeAnswer, a.ID), skMeta); err != nil {
			return domain.Question{}, gone, err
		}
		gone = append(gone, a)
	}
	if err := s.del(ctx, entityPK(typeQuestion, id), skMeta); err != nil {
		return domain.Question{}, gone, err
	}
	return q, gone, nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var it questionItem
	ok, err := s.get(ctx, entityPK(typeQuestion, id), skMeta, &it)
	if err != nil {
		return domain.Question{}, err
	}
	if !ok {
		return domain.Question{}, fmt.Errorf("question %q: %w", id, domain.ErrNotFound)
	}
	return it.domain(), nil
}

// allQuestions returns questions in store order: creation time, then id.
func (s *Store) allQuestions(ctx context.Context) ([]domain.Question, error) {
	items, err := s.scanType(ctx, typeQuestion)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Question, 0, len(items))
	for _, av := range items {
		var it questionItem
		if err := attributevalue.UnmarshalMap(av, &it); err != nil {
			s.log.Warn("skipping undecodable question", zap.Error(err))
			continue
		}
		if it.Type == typeQuestion {
			out = append(out, it.domain())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListQuestions(ctx context.Context, lq store.ListQuery) ([]domain.Question, error) {
	all, err := s.allQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return store.ApplyQuestions(all, lq), nil
}

func (s *Store) SearchQuestions(ctx context.Context, query string, limit int) ([]domain.Question, error) {
	all, err := s.allQuestions(ctx)
	if err != nil {
		return nil, err
	}
	terms := store.SearchTerms(query)
	hits := make([]domain.Question, 0)
	for _, q := range all {
		if store.MatchQuestion(q, terms) {
			hits = append(hits, q)
		}
	}
	return store.ApplyQuestions(hits, store.ListQuery{
		Sort:  []store.SortKey{{Field: store.FieldCreatedAt, Desc: true}},
		Limit: limit,
	}), nil
}

func (s *Store) CreateAnswer(ctx context.Context, a domain.Answer) error {
	if a.ID == "" {
		return fmt.Errorf("%w: answer id is required", domain.ErrInvalid)
	}
	if err := s.requireUser(ctx, a.UserID); err != nil {
		return err
	}
	if _, err := s.GetQuestion(ctx, a.QuestionID); err != nil {
		return err
	}
	if err := s.create(ctx, toAnswerItem(a), "answer "+a.ID); err != nil {
		return err
	}
	return s.addCounters(ctx, entityPK(typeQuestion, a.QuestionID), map[string]int{"AnswerCount": 1})
}

func (s *Store) GetAnswer(ctx context.Context, id string) (domain.Answer, error) {
	var it answerItem
	ok, err := s.get(ctx, entityPK(typeAnswer, id), skMeta, &it)
	if err != nil {
		return domain.Answer{}, err
	}
	if !ok {
		return domain.Answer{}, fmt.Errorf("answer %q: %w", id, domain.ErrNotFound)
	}
	return it.domain(), nil
}

func (s *Store) listAnswers(ctx context.Context) ([]domain.Answer, error) {
	items, err := s.scanType(ctx, typeAnswer)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Answer, 0, len(items))
	for _, av := range items {
		var it answerItem
		if err := attributevalue.UnmarshalMap(av, &it); err == nil && it.Type == typeAnswer {
			out = append(out, it.domain())
		}
	}
	return out, nil
}

func (s *Store) CreateSolution(ctx context.Context, sol domain.Solution) error {
	if sol.ID == "" {
		return fmt.Errorf("%w: solution id is required", domain.ErrInvalid)
	}
	if err := s.requireUser(ctx, sol.UserID); err != nil {
		return err
	}
	return s.create(ctx, toSolutionItem(sol), "solution "+sol.ID)
}

func (s *Store) GetSolution(ctx context.Context, id string) (domain.Solution, error) {
	var it solutionItem
	ok, err := s.get(ctx, entityPK(typeSolution, id), skMeta, &it)
	if err != nil {
		return domain.Solution{}, err
	}
	if !ok {
		return domain.Solution{}, fmt.Errorf("solution %q: %w", id, domain.ErrNotFound)
	}
	return it.domain(), nil
}

func (s *Store) allSolutions(ctx context.Context) ([]domain.Solution, error) {
	items, err := s.scanType(ctx, typeSolution)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Solution, 0, len(items))
	for _, av := range items {
		var it solutionItem
		if err := attributevalue.UnmarshalMap(av, &it); err != nil {
			s.log.Warn("skipping undecodable solution", zap.Error(err))
			continue
		}
		if it.Type == typeSolution {
			out = append(out, it.domain())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListSolutions(ctx context.Context, lq store.ListQuery) ([]domain.Solution, error) {
	all, err := s.allSolutions(ctx)
	if err != nil {
		return nil, err
	}
	return store.ApplySolutions(all, lq), nil
}

func (s *Store) targetPK(ctx context.Context, typ, id string) (string, error) {
	var err error
	switch typ {
	case domain.TargetQuestion:
		_, err = s.GetQuestion(ctx, id)
	case domain.TargetAnswer:
		_, err = s.GetAnswer(ctx, id)
	case domain.TargetSolution:
		_, err = s.GetSolution(ctx, id)
	default:
		return "", fmt.Errorf("%w: unknown target type %q", domain.ErrInvalid, typ)
	}
	if err != nil {
		return "", err
	}
	switch typ {
	case domain.TargetQuestion:
		return entityPK(typeQuestion, id), nil
	case domain.TargetAnswer:
		return entityPK(typeAnswer, id), nil
	}
	return entityPK(typeSolution, id), nil
}

func (s *Store) CreateComment(ctx context.Context, c domain.Comment) error {
	if c.ID == "" {
		return fmt.Errorf("%w: comment id is required", domain.ErrInvalid)
	}
	if err := s.requireUser(ctx, c.UserID); err != nil {
		return err
	}
	pk, err := s.targetPK(ctx, c.CommentableType, c.CommentableID)
	if err != nil {
		return err
	}
	if err := s.create(ctx, toCommentItem(c), "comment "+c.ID); err != nil {
		return err
	}
	if c.CommentableType == domain.TargetSolution {
		return s.addCounters(ctx, pk, map[string]int{"CommentCount": 1})
	}
	return nil
}

func (s *Store) React(ctx context.Context, r domain.Reaction) (*domain.Reaction, error) {
	if err := s.requireUser(ctx, r.UserID); err != nil {
		return nil, err
	}
	target, err := s.targetPK(ctx, r.TargetType, r.TargetID)
	if err != nil {
		return nil, err
	}

	rpk, rsk := reactionPK(r.TargetType, r.TargetID), reactionSK(r.UserID)
	var prevItem reactionItem
	found, err := s.get(ctx, rpk, rsk, &prevItem)
	if err != nil {
		return nil, err
	}
	var prev *domain.Reaction
	if found {
		p := prevItem.domain()
		prev = &p
	}

	next, d := store.Toggle(prev, r)
	if next == nil {
		err = s.del(ctx, rpk, rsk)
	} else {
		var av map[string]types.AttributeValue
		if av, err = attributevalue.MarshalMap(toReactionItem(*next)); err == nil {
			_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
		}
	}
	if err != nil {
		return nil, fmt.Errorf("store reaction: %w", err)
	}

	deltas := map[string]int{"LikeCount": d.Likes}
	if r.TargetType != domain.TargetAnswer {
		deltas["DislikeCount"] = d.Dislikes
	}
	if err := s.addCounters(ctx, target, deltas); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return domain.UserStats{}, err
	}
	var st domain.UserStats

	qs, err := s.allQuestions(ctx)
	if err != nil {
		return st, err
	}
	for _, q := range qs {
		if q.UserID == userID {
			st.Questions++
			st.LikesReceived += q.LikeCount
		}
	}
	as, err := s.listAnswers(ctx)
	if err != nil {
		return st, err
	}
	for _, a := range as {
		if a.UserID == userID {
			st.Answers++
			st.LikesReceived += a.LikeCount
		}
	}
	ss, err := s.allSolutions(ctx)
	if err != nil {
		return st, err
	}
	for _, sol := range ss {
		if sol.UserID == userID {
			st.Solutions++
			st.LikesReceived += sol.LikeCount
		}
	}
	items, err := s.scanType(ctx, typeComment)
	if err != nil {
		return st, err
	}
	for _, av := range items {
		var c commentItem
		if err := attributevalue.UnmarshalMap(av, &c); err == nil && c.Type == typeComment && c.UserID == userID {
			st.Comments++
		}
	}
	return st, nil
}
