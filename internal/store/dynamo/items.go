package dynamo

import (
	"time"

	"github.com/unkn0wn-root/tagcache/internal/domain"
)

// Single-table layout. Every entity lives under "<TYPE>#<id>" with SK "META";
// reactions live under their target with one SK per user.
const (
	skMeta = "META"

	typeUser     = "USER"
	typeQuestion = "QUESTION"
	typeAnswer   = "ANSWER"
	typeSolution = "SOLUTION"
	typeComment  = "COMMENT"
	typeReaction = "REACTION"
)

func entityPK(typ, id string) string { return typ + "#" + id }

func reactionPK(targetType, targetID string) string {
	return typeReaction + "#" + targetType + "#" + targetID
}

func reactionSK(userID string) string { return "USER#" + userID }

type userItem struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	Type      string    `dynamodbav:"Type"`
	ID        string    `dynamodbav:"ID"`
	Name      string    `dynamodbav:"Name"`
	Email     string    `dynamodbav:"Email"`
	CreatedAt time.Time `dynamodbav:"CreatedAt"`
}

func toUserItem(u domain.User) userItem {
	return userItem{PK: entityPK(typeUser, u.ID), SK: skMeta, Type: typeUser,
		ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (i userItem) domain() domain.User {
	return domain.User{ID: i.ID, Name: i.Name, Email: i.Email, CreatedAt: i.CreatedAt}
}

type questionItem struct {
	PK           string    `dynamodbav:"PK"`
	SK           string    `dynamodbav:"SK"`
	Type         string    `dynamodbav:"Type"`
	ID           string    `dynamodbav:"ID"`
	UserID       string    `dynamodbav:"UserID"`
	Title        string    `dynamodbav:"Title"`
	Body         string    `dynamodbav:"Body"`
	Tags         string    `dynamodbav:"Tags"`
	LikeCount    int       `dynamodbav:"LikeCount"`
	DislikeCount int       `dynamodbav:"DislikeCount"`
	AnswerCount  int       `dynamodbav:"AnswerCount"`
	CreatedAt    time.Time `dynamodbav:"CreatedAt"`
	UpdatedAt    time.Time `dynamodbav:"UpdatedAt"`
}

func toQuestionItem(q domain.Question) questionItem {
	return questionItem{PK: entityPK(typeQuestion, q.ID), SK: skMeta, Type: typeQuestion,
		ID: q.ID, UserID: q.UserID, Title: q.Title, Body: q.Body, Tags: q.Tags,
		LikeCount: q.LikeCount, DislikeCount: q.DislikeCount, AnswerCount: q.AnswerCount,
		CreatedAt: q.CreatedAt, UpdatedAt: q.UpdatedAt}
}

func (i questionItem) domain() domain.Question {
	return domain.Question{ID: i.ID, UserID: i.UserID, Title: i.Title, Body: i.Body, Tags: i.Tags,
		LikeCount: i.LikeCount, DislikeCount: i.DislikeCount, AnswerCount: i.AnswerCount,
		CreatedAt: i.CreatedAt, UpdatedAt: i.UpdatedAt}
}

type answerItem struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"`
	Type       string    `dynamodbav:"Type"`
	ID         string    `dynamodbav:"ID"`
	QuestionID string    `dynamodbav:"QuestionID"`
	UserID     string    `dynamodbav:"UserID"`
	Body       string    `dynamodbav:"Body"`
	IsAccepted bool      `dynamodbav:"IsAccepted"`
	LikeCount  int       `dynamodbav:"LikeCount"`
	CreatedAt  time.Time `dynamodbav:"CreatedAt"`
	UpdatedAt  time.Time `dynamodbav:"UpdatedAt"`
}

func toAnswerItem(a domain.Answer) answerItem {
	return answerItem{PK: entityPK(typeAnswer, a.ID), SK: skMeta, Type: typeAnswer,
		ID: a.ID, QuestionID: a.QuestionID, UserID: a.UserID, Body: a.Body,
		IsAccepted: a.IsAccepted, LikeCount: a.LikeCount, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
}

func (i answerItem) domain() domain.Answer {
	return domain.Answer{ID: i.ID, QuestionID: i.QuestionID, UserID: i.UserID, Body: i.Body,
		IsAccepted: i.IsAccepted, LikeCount: i.LikeCount, CreatedAt: i.CreatedAt, UpdatedAt: i.UpdatedAt}
}

type stepItem struct {
	Position    int    `dynamodbav:"Position"`
	Title       string `dynamodbav:"Title"`
	Description string `dynamodbav:"Description"`
}

type solutionItem struct {
	PK           string     `dynamodbav:"PK"`
	SK           string     `dynamodbav:"SK"`
	Type         string     `dynamodbav:"Type"`
	ID           string     `dynamodbav:"ID"`
	UserID       string     `dynamodbav:"UserID"`
	Title        string     `dynamodbav:"Title"`
	Description  string     `dynamodbav:"Description"`
	Tags         string     `dynamodbav:"Tags"`
	Steps        []stepItem `dynamodbav:"Steps,omitempty"`
	LikeCount    int        `dynamodbav:"LikeCount"`
	DislikeCount int        `dynamodbav:"DislikeCount"`
	CommentCount int        `dynamodbav:"CommentCount"`
	CreatedAt    time.Time  `dynamodbav:"CreatedAt"`
	UpdatedAt    time.Time  `dynamodbav:"UpdatedAt"`
}

func toSolutionItem(s domain.Solution) solutionItem {
	it := solutionItem{PK: entityPK(typeSolution, s.ID), SK: skMeta, Type: typeSolution,
		ID: s.ID, UserID: s.UserID, Title: s.Title, Description: s.Description, Tags: s.Tags,
		LikeCount: s.LikeCount, DislikeCount: s.DislikeCount, CommentCount: s.CommentCount,
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
	for _, st := range s.Steps {
		it.Steps = append(it.Steps, stepItem(st))
	}
	return it
}

func (i solutionItem) domain() domain.Solution {
	s := domain.Solution{ID: i.ID, UserID: i.UserID, Title: i.Title, Description: i.Description, Tags: i.Tags,
		LikeCount: i.LikeCount, DislikeCount: i.DislikeCount, CommentCount: i.CommentCount,
		CreatedAt: i.CreatedAt, UpdatedAt: i.UpdatedAt}
	for _, st := range i.Steps {
		s.Steps = append(s.Steps, domain.Step(st))
	}
	return s
}

type commentItem struct {
	PK              string    `dynamodbav:"PK"`
	SK              string    `dynamodbav:"SK"`
	Type            string    `dynamodbav:"Type"`
	ID              string    `dynamodbav:"ID"`
	CommentableType string    `dynamodbav:"CommentableType"`
	CommentableID   string    `dynamodbav:"CommentableID"`
	UserID          string    `dynamodbav:"UserID"`
	Body            string    `dynamodbav:"Body"`
	CreatedAt       time.Time `dynamodbav:"CreatedAt"`
}

func toCommentItem(c domain.Comment) commentItem {
	return commentItem{PK: entityPK(typeComment, c.ID), SK: skMeta, Type: typeComment,
		ID: c.ID, CommentableType: c.CommentableType, CommentableID: c.CommentableID,
		UserID: c.UserID, Body: c.Body, CreatedAt: c.CreatedAt}
}

type reactionItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Type       string `dynamodbav:"Type"`
	UserID     string `dynamodbav:"UserID"`
	TargetType string `dynamodbav:"TargetType"`
	TargetID   string `dynamodbav:"TargetID"`
	Like       bool   `dynamodbav:"Like"`
}

func toReactionItem(r domain.Reaction) reactionItem {
	return reactionItem{PK: reactionPK(r.TargetType, r.TargetID), SK: reactionSK(r.UserID), Type: typeReaction,
		UserID: r.UserID, TargetType: r.TargetType, TargetID: r.TargetID, Like: r.Like}
}

func (i reactionItem) domain() domain.Reaction {
	return domain.Reaction{UserID: i.UserID, TargetType: i.TargetType, TargetID: i.TargetID, Like: i.Like}
}
