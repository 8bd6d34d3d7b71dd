// Package broadcast publishes public projections of newly created questions
// and answers. Publishing is fire-and-forget: callers log failures and never
// undo the write that triggered them.
package broadcast

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/domain"
)

const (
	ChannelQuestions = "questions"

	EventQuestionCreated = "question.created"
	EventAnswerCreated   = "answer.created"
)

// QuestionChannel is the per-question channel answers are announced on.
func QuestionChannel(questionID string) string { return "question." + questionID }

type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload map[string]any) error
}

// Message is the envelope written to transports that carry JSON.
type Message struct {
	Channel string         `json:"channel"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

// QuestionCreated flattens q and its author into primitive fields. Tags are
// sent normalized and comma-joined.
func QuestionCreated(q domain.Question, author domain.User) map[string]any {
	return map[string]any{
		"id":           q.ID,
		"title":        q.Title,
		"body":         q.Body,
		"tags":         strings.Join(domain.ParseTags(q.Tags), ","),
		"answer_count": q.AnswerCount,
		"user_id":      author.ID,
		"user_name":    author.Name,
		"created_at":   q.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// AnswerCreated flattens a and its author into primitive fields.
func AnswerCreated(a domain.Answer, author domain.User) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"question_id": a.QuestionID,
		"body":        a.Body,
		"is_accepted": a.IsAccepted,
		"user_id":     author.ID,
		"user_name":   author.Name,
		"created_at":  a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// AnnounceQuestion publishes q on the global questions channel.
func AnnounceQuestion(ctx context.Context, p Publisher, q domain.Question, author domain.User) error {
	return p.Publish(ctx, ChannelQuestions, EventQuestionCreated, QuestionCreated(q, author))
}

// AnnounceAnswer publishes a on its question's channel.
func AnnounceAnswer(ctx context.Context, p Publisher, a domain.Answer, author domain.User) error {
	return p.Publish(ctx, QuestionChannel(a.QuestionID), EventAnswerCreated, AnswerCreated(a, author))
}

type Nop struct{}

func (Nop) Publish(context.Context, string, string, map[string]any) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, channel, event string, payload map[string]any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, channel, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
