// Package store defines the persistent store behind the cached read
// operations, plus the ordering and search rules every backend shares.
package store

import (
	"context"
	"sort"
	"strings"

	"github.com/unkn0wn-root/tagcache/internal/domain"
)

// Store is the source of truth. Implementations return domain.ErrNotFound for
// missing records and domain.ErrInvalid (wrapped) for bad input.
type Store interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)

	CreateQuestion(ctx context.Context, q domain.Question) error
	UpdateQuestion(ctx context.Context, q domain.Question) error
	// DeleteQuestion removes the question and its answers and returns what
	// was deleted.
	DeleteQuestion(ctx context.Context, id string) (domain.Question, []domain.Answer, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListQuestions(ctx context.Context, q ListQuery) ([]domain.Question, error)
	SearchQuestions(ctx context.Context, query string, limit int) ([]domain.Question, error)

	// CreateAnswer bumps the question's answer count.
	CreateAnswer(ctx context.Context, a domain.Answer) error
	GetAnswer(ctx context.Context, id string) (domain.Answer, error)

	CreateSolution(ctx context.Context, s domain.Solution) error
	GetSolution(ctx context.Context, id string) (domain.Solution, error)
	ListSolutions(ctx context.Context, q ListQuery) ([]domain.Solution, error)

	// CreateComment bumps the comment count of a commented solution.
	CreateComment(ctx context.Context, c domain.Comment) error

	// React toggles a like or dislike and keeps target counters in step. It
	// returns the user's reaction after the toggle, or nil if none remains.
	React(ctx context.Context, r domain.Reaction) (*domain.Reaction, error)

	UserStats(ctx context.Context, userID string) (domain.UserStats, error)
}

// Sort fields.
const (
	FieldAnswerCount  = "answer_count"
	FieldLikeCount    = "like_count"
	FieldCommentCount = "comment_count"
	FieldCreatedAt    = "created_at"
)

type SortKey struct {
	Field string
	Desc  bool
}

// ListQuery orders by Sort (stable over store order) and then pages.
// Limit <= 0 returns everything after Offset.
type ListQuery struct {
	Sort   []SortKey
	Limit  int
	Offset int
}

func questionField(q domain.Question, f string) int64 {
	switch f {
	case FieldAnswerCount:
		return int64(q.AnswerCount)
	case FieldLikeCount:
		return int64(q.LikeCount)
	case FieldCreatedAt:
		return q.CreatedAt.UnixNano()
	}
	return 0
}

func solutionField(s domain.Solution, f string) int64 {
	switch f {
	case FieldLikeCount:
		return int64(s.LikeCount)
	case FieldCommentCount:
		return int64(s.CommentCount)
	case FieldCreatedAt:
		return s.CreatedAt.UnixNano()
	}
	return 0
}

func less(a, b int64, desc bool) (lt, decided bool) {
	if a == b {
		return false, false
	}
	if desc {
		return a > b, true
	}
	return a < b, true
}

// ApplyQuestions sorts qs in place per q and returns the requested page.
func ApplyQuestions(qs []domain.Question, q ListQuery) []domain.Question {
	if len(q.Sort) > 0 {
		sort.SliceStable(qs, func(i, j int) bool {
			for _, k := range q.Sort {
				if lt, ok := less(questionField(qs[i], k.Field), questionField(qs[j], k.Field), k.Desc); ok {
					return lt
				}
			}
			return false
		})
	}
	return page(qs, q.Limit, q.Offset)
}

// ApplySolutions is ApplyQuestions for solutions.
func ApplySolutions(ss []domain.Solution, q ListQuery) []domain.Solution {
	if len(q.Sort) > 0 {
		sort.SliceStable(ss, func(i, j int) bool {
			for _, k := range q.Sort {
				if lt, ok := less(solutionField(ss[i], k.Field), solutionField(ss[j], k.Field), k.Desc); ok {
					return lt
				}
			}
			return false
		})
	}
	return page(ss, q.Limit, q.Offset)
}

func page[T any](xs []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(xs) {
		return []T{}
	}
	xs = xs[offset:]
	if limit > 0 && limit < len(xs) {
		xs = xs[:limit]
	}
	return xs
}

// SearchTerms lowercases and splits a search query on whitespace.
func SearchTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// MatchQuestion reports whether every term occurs in the title, body or tags.
func MatchQuestion(q domain.Question, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	hay := strings.ToLower(q.Title + "\n" + q.Body + "\n" + q.Tags)
	for _, t := range terms {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}

// ReactionDelta is the counter change caused by moving from prev to next,
// where either may be nil.
type ReactionDelta struct {
	Likes    int
	Dislikes int
}

// Toggle applies the like/dislike toggle rule: repeating the same reaction
// removes it, the opposite one replaces it.
func Toggle(prev *domain.Reaction, in domain.Reaction) (next *domain.Reaction, d ReactionDelta) {
	switch {
	case prev == nil:
		next = &in
	case prev.Like == in.Like:
		next = nil
	default:
		next = &in
	}
	if prev != nil {
		if prev.Like {
			d.Likes--
		} else {
			d.Dislikes--
		}
	}
	if next != nil {
		if next.Like {
			d.Likes++
		} else {
			d.Dislikes++
		}
	}
	return next, d
}
