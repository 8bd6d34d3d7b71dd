// Package memory is an in-process Store. Lists come back in insertion order
// before sorting, which makes it the reference backend for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/tagcache/internal/domain"
	"github.com/unkn0wn-root/tagcache/internal/store"
)

type Store struct {
	mu sync.RWMutex

	users     map[string]domain.User
	questions map[string]domain.Question
	answers   map[string]domain.Answer
	solutions map[string]domain.Solution
	comments  map[string]domain.Comment
	reactions map[string]domain.Reaction // by Reaction.CacheKey

	// insertion order
	questionIDs []string
	answerIDs   []string
	solutionIDs []string
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:     make(map[string]domain.User),
		questions: make(map[string]domain.Question),
		answers:   make(map[string]domain.Answer),
		solutions: make(map[string]domain.Solution),
		comments:  make(map[string]domain.Comment),
		reactions: make(map[string]domain.Reaction),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalid}, args...)...)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, domain.ErrNotFound)
}

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		return invalid("user id is required")
	}
	if _, dup := s.users[u.ID]; dup {
		return invalid("user %q exists", u.ID)
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) CreateQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == "" {
		return invalid("question id is required")
	}
	if _, dup := s.questions[q.ID]; dup {
		return invalid("question %q exists", q.ID)
	}
	if _, ok := s.users[q.UserID]; !ok {
		return notFound("user", q.UserID)
	}
	s.questions[q.ID] = q
	s.questionIDs = append(s.questionIDs, q.ID)
	return nil
}

func (s *Store) UpdateQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.questions[q.ID]
	if !ok {
		return notFound("question", q.ID)
	}
	// counters are owned by answers and reactions
	q.LikeCount, q.DislikeCount, q.AnswerCount = cur.LikeCount, cur.DislikeCount, cur.AnswerCount
	q.UserID, q.CreatedAt = cur.UserID, cur.CreatedAt
	s.questions[q.ID] = q
	return nil
}

func (s *Store) DeleteQuestion(_ context.Context, id string) (domain.Question, []domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, nil, notFound("question", id)
	}
	delete(s.questions, id)
	s.questionIDs = remove(s.questionIDs, id)

	var gone []domain.Answer
	kept := s.answerIDs[:0]
	for _, aid := range s.answerIDs {
		if a := s.answers[aid]; a.QuestionID == id {
			gone = append(gone, a)
			delete(s.answers, aid)
			continue
		}
		kept = append(kept, aid)
	}
	s.answerIDs = kept
	return q, gone, nil
}

func (s *Store) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, notFound("question", id)
	}
	return q, nil
}

func (s *Store) ListQuestions(_ context.Context, lq store.ListQuery) ([]domain.Question, error) {
	s.mu.RLock()
	out := make([]domain.Question, 0, len(s.questionIDs))
	for _, id := range s.questionIDs {
		out = append(out, s.questions[id])
	}
	s.mu.RUnlock()
	return store.ApplyQuestions(out, lq), nil
}

// SearchQuestions returns matches newest first.
func (s *Store) SearchQuestions(ctx context.Context, query string, limit int) ([]domain.Question, error) {
	terms := store.SearchTerms(query)
	all, _ := s.ListQuestions(ctx, store.ListQuery{})
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

func (s *Store) CreateAnswer(_ context.Context, a domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		return invalid("answer id is required")
	}
	if _, dup := s.answers[a.ID]; dup {
		return invalid("answer %q exists", a.ID)
	}
	if _, ok := s.users[a.UserID]; !ok {
		return notFound("user", a.UserID)
	}
	q, ok := s.questions[a.QuestionID]
	if !ok {
		return notFound("question", a.QuestionID)
	}
	q.AnswerCount++
	s.questions[q.ID] = q
	s.answers[a.ID] = a
	s.answerIDs = append(s.answerIDs, a.ID)
	return nil
}

func (s *Store) GetAnswer(_ context.Context, id string) (domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[id]
	if !ok {
		return domain.Answer{}, notFound("answer", id)
	}
	return a, nil
}

func (s *Store) CreateSolution(_ context.Context, sol domain.Solution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sol.ID == "" {
		return invalid("solution id is required")
	}
	if _, dup := s.solutions[sol.ID]; dup {
		return invalid("solution %q exists", sol.ID)
	}
	if _, ok := s.users[sol.UserID]; !ok {
		return notFound("user", sol.UserID)
	}
	sol.Steps = append([]domain.Step(nil), sol.Steps...)
	s.solutions[sol.ID] = sol
	s.solutionIDs = append(s.solutionIDs, sol.ID)
	return nil
}

func (s *Store) GetSolution(_ context.Context, id string) (domain.Solution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sol, ok := s.solutions[id]
	if !ok {
		return domain.Solution{}, notFound("solution", id)
	}
	return sol, nil
}

func (s *Store) ListSolutions(_ context.Context, lq store.ListQuery) ([]domain.Solution, error) {
	s.mu.RLock()
	out := make([]domain.Solution, 0, len(s.solutionIDs))
	for _, id := range s.solutionIDs {
		out = append(out, s.solutions[id])
	}
	s.mu.RUnlock()
	return store.ApplySolutions(out, lq), nil
}

func (s *Store) CreateComment(_ context.Context, c domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		return invalid("comment id is required")
	}
	if _, ok := s.users[c.UserID]; !ok {
		return notFound("user", c.UserID)
	}
	if err := s.targetExistsLocked(c.CommentableType, c.CommentableID); err != nil {
		return err
	}
	if c.CommentableType == domain.TargetSolution {
		sol := s.solutions[c.CommentableID]
		sol.CommentCount++
		s.solutions[sol.ID] = sol
	}
	s.comments[c.ID] = c
	return nil
}

func (s *Store) React(_ context.Context, r domain.Reaction) (*domain.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[r.UserID]; !ok {
		return nil, notFound("user", r.UserID)
	}
	if err := s.targetExistsLocked(r.TargetType, r.TargetID); err != nil {
		return nil, err
	}

	key := r.CacheKey()
	var prev *domain.Reaction
	if p, ok := s.reactions[key]; ok {
		prev = &p
	}
	next, d := store.Toggle(prev, r)
	if next == nil {
		delete(s.reactions, key)
	} else {
		s.reactions[key] = *next
	}

	switch r.TargetType {
	case domain.TargetQuestion:
		q := s.questions[r.TargetID]
		q.LikeCount += d.Likes
		q.DislikeCount += d.Dislikes
		s.questions[q.ID] = q
	case domain.TargetSolution:
		sol := s.solutions[r.TargetID]
		sol.LikeCount += d.Likes
		sol.DislikeCount += d.Dislikes
		s.solutions[sol.ID] = sol
	case domain.TargetAnswer:
		a := s.answers[r.TargetID]
		a.LikeCount += d.Likes
		s.answers[a.ID] = a
	}
	return next, nil
}

func (s *Store) UserStats(_ context.Context, userID string) (domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[userID]; !ok {
		return domain.UserStats{}, notFound("user", userID)
	}
	var st domain.UserStats
	for _, q := range s.questions {
		if q.UserID == userID {
			st.Questions++
			st.LikesReceived += q.LikeCount
		}
	}
	for _, a := range s.answers {
		if a.UserID == userID {
			st.Answers++
			st.LikesReceived += a.LikeCount
		}
	}
	for _, sol := range s.solutions {
		if sol.UserID == userID {
			st.Solutions++
			st.LikesReceived += sol.LikeCount
		}
	}
	for _, c := range s.comments {
		if c.UserID == userID {
			st.Comments++
		}
	}
	return st, nil
}

func (s *Store) targetExistsLocked(typ, id string) error {
	var ok bool
	switch typ {
	case domain.TargetQuestion:
		_, ok = s.questions[id]
	case domain.TargetAnswer:
		_, ok = s.answers[id]
	case domain.TargetSolution:
		_, ok = s.solutions[id]
	default:
		return invalid("unknown target type %q", typ)
	}
	if !ok {
		return notFound(typ, id)
	}
	return nil
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
