package httpapi

import (
	"time"

	"github.com/unkn0wn-root/tagcache/internal/domain"
)

type createUserRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
}

type questionRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Title  string `json:"title" validate:"required,max=255"`
	Body   string `json:"body" validate:"required"`
	Tags   string `json:"tags" validate:"max=255"`
}

type updateQuestionRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	Body  string `json:"body" validate:"required"`
	Tags  string `json:"tags" validate:"max=255"`
}

type answerRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Body   string `json:"body" validate:"required"`
}

type stepRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

type solutionRequest struct {
	UserID      string        `json:"user_id" validate:"required"`
	Title       string        `json:"title" validate:"required,max=255"`
	Description string        `json:"description" validate:"required"`
	Tags        string        `json:"tags" validate:"max=255"`
	Steps       []stepRequest `json:"steps" validate:"dive"`
}

type commentRequest struct {
	UserID          string `json:"user_id" validate:"required"`
	CommentableType string `json:"commentable_type" validate:"required,oneof=question answer solution"`
	CommentableID   string `json:"commentable_id" validate:"required"`
	Body            string `json:"body" validate:"required,max=2000"`
}

type reactionRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	TargetType string `json:"target_type" validate:"required,oneof=question answer solution"`
	TargetID   string `json:"target_id" validate:"required"`
	Type       string `json:"type" validate:"required,oneof=like dislike"`
}

// Resources are the public shapes; free-text tags go out as a list.

type userResource struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type questionResource struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Tags         []string  `json:"tags"`
	AnswerCount  int       `json:"answer_count"`
	LikeCount    int       `json:"like_count"`
	DislikeCount int       `json:"dislike_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type answerResource struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	UserID     string    `json:"user_id"`
	Body       string    `json:"body"`
	IsAccepted bool      `json:"is_accepted"`
	LikeCount  int       `json:"like_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type solutionResource struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Tags         []string      `json:"tags"`
	Steps        []domain.Step `json:"steps"`
	LikeCount    int           `json:"like_count"`
	DislikeCount int           `json:"dislike_count"`
	CommentCount int           `json:"comment_count"`
	CreatedAt    time.Time     `json:"created_at"`
}

type profileResource struct {
	User  userResource     `json:"user"`
	Stats domain.UserStats `json:"stats"`
}

type reactionResource struct {
	Active bool   `json:"active"`
	Type   string `json:"type,omitempty"`
}

func tagsOf(s string) []string {
	if t := domain.ParseTags(s); t != nil {
		return t
	}
	return []string{}
}

func toUser(u domain.User) userResource {
	return userResource{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}
}

func toQuestion(q domain.Question) questionResource {
	return questionResource{
		ID:           q.ID,
		UserID:       q.UserID,
		Title:        q.Title,
		Body:         q.Body,
		Tags:         tagsOf(q.Tags),
		AnswerCount:  q.AnswerCount,
		LikeCount:    q.LikeCount,
		DislikeCount: q.DislikeCount,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}
}

func toQuestions(qs []domain.Question) []questionResource {
	out := make([]questionResource, len(qs))
	for i, q := range qs {
		out[i] = toQuestion(q)
	}
	return out
}

func toAnswer(a domain.Answer) answerResource {
	return answerResource{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		UserID:     a.UserID,
		Body:       a.Body,
		IsAccepted: a.IsAccepted,
		LikeCount:  a.LikeCount,
		CreatedAt:  a.CreatedAt,
	}
}

func toSolution(s domain.Solution) solutionResource {
	steps := s.Steps
	if steps == nil {
		steps = []domain.Step{}
	}
	return solutionResource{
		ID:           s.ID,
		UserID:       s.UserID,
		Title:        s.Title,
		Description:  s.Description,
		Tags:         tagsOf(s.Tags),
		Steps:        steps,
		LikeCount:    s.LikeCount,
		DislikeCount: s.DislikeCount,
		CommentCount: s.CommentCount,
		CreatedAt:    s.CreatedAt,
	}
}

func toSolutions(ss []domain.Solution) []solutionResource {
	out := make([]solutionResource, len(ss))
	for i, s := range ss {
		out[i] = toSolution(s)
	}
	return out
}
