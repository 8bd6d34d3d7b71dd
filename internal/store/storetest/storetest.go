// Package storetest is a behavioral suite every store.Store must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tagcache/internal/domain"
	"github.com/unkn0wn-root/tagcache/internal/store"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Seed creates users u1 and u2.
func Seed(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", CreatedAt: t0}))
	require.NoError(t, s.CreateUser(ctx, domain.User{ID: "u2", Name: "Linus", Email: "linus@example.com", CreatedAt: t0}))
}

func question(id, user, tags string, minute int) domain.Question {
	at := t0.Add(time.Duration(minute) * time.Minute)
	return domain.Question{ID: id, UserID: user, Title: "title " + id, Body: "body " + id, Tags: tags, CreatedAt: at, UpdatedAt: at}
}

// Run exercises s, which must be empty.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s)
		ctx := context.Background()
		u, err := s.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", u.Name)

		_, err = s.GetUser(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, s.CreateUser(ctx, domain.User{ID: "u1"}), domain.ErrInvalid)
	})

	t.Run("questions and answers", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s)
		ctx := context.Background()

		require.NoError(t, s.CreateQuestion(ctx, question("q1", "u1", "go, rust", 1)))
		require.NoError(t, s.CreateQuestion(ctx, question("q2", "u2", "go", 2)))
		assert.ErrorIs(t, s.CreateQuestion(ctx, question("q3", "ghost", "", 3)), domain.ErrNotFound)

		require.NoError(t, s.CreateAnswer(ctx, domain.Answer{ID: "a1", QuestionID: "q2", UserID: "u1", Body: "x", CreatedAt: t0}))
		assert.ErrorIs(t, s.CreateAnswer(ctx, domain.Answer{ID: "a2", QuestionID: "nope", UserID: "u1"}), domain.ErrNotFound)

		q2, err := s.GetQuestion(ctx, "q2")
		require.NoError(t, err)
		assert.Equal(t, 1, q2.AnswerCount)

		popular, err := s.ListQuestions(ctx, store.ListQuery{Sort: []store.SortKey{
			{Field: store.FieldAnswerCount, Desc: true}, {Field: store.FieldLikeCount, Desc: true},
		}})
		require.NoError(t, err)
		require.Len(t, popular, 2)
		assert.Equal(t, "q2", popular[0].ID)

		all, err := s.ListQuestions(ctx, store.ListQuery{})
		require.NoError(t, err)
		assert.Equal(t, "q1", all[0].ID, "store order is creation order")

		upd := q2
		upd.Title = "renamed"
		upd.AnswerCount = 99
		require.NoError(t, s.UpdateQuestion(ctx, upd))
		q2, _ = s.GetQuestion(ctx, "q2")
		assert.Equal(t, "renamed", q2.Title)
		assert.Equal(t, 1, q2.AnswerCount, "counters are not writable through update")

		del, gone, err := s.DeleteQuestion(ctx, "q2")
		require.NoError(t, err)
		assert.Equal(t, "u2", del.UserID)
		require.Len(t, gone, 1)
		assert.Equal(t, "a1", gone[0].ID)
		_, err = s.GetAnswer(ctx, "a1")
		assert.ErrorIs(t, err, domain.ErrNotFound, "answers go with their question")
		_, _, err = s.DeleteQuestion(ctx, "q2")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("solutions comments reactions", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s)
		ctx := context.Background()

		require.NoError(t, s.CreateSolution(ctx, domain.Solution{
			ID: "s1", UserID: "u1", Title: "fix", Tags: "go", CreatedAt: t0,
			Steps: []domain.Step{{Position: 1, Title: "do it"}},
		}))
		require.NoError(t, s.CreateComment(ctx, domain.Comment{
			ID: "c1", CommentableType: domain.TargetSolution, CommentableID: "s1", UserID: "u2", Body: "nice", CreatedAt: t0,
		}))
		assert.ErrorIs(t, s.CreateComment(ctx, domain.Comment{
			ID: "c2", CommentableType: "planet", CommentableID: "x", UserID: "u2",
		}), domain.ErrInvalid)

		like := domain.Reaction{UserID: "u2", TargetType: domain.TargetSolution, TargetID: "s1", Like: true}
		r, err := s.React(ctx, like)
		require.NoError(t, err)
		require.NotNil(t, r)

		sol, err := s.GetSolution(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 1, sol.LikeCount)
		assert.Equal(t, 1, sol.CommentCount)
		require.Len(t, sol.Steps, 1)

		r, err = s.React(ctx, like)
		require.NoError(t, err)
		assert.Nil(t, r, "same reaction twice toggles off")
		sol, _ = s.GetSolution(ctx, "s1")
		assert.Equal(t, 0, sol.LikeCount)

		list, err := s.ListSolutions(ctx, store.ListQuery{Limit: 5})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("stats and search", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s)
		ctx := context.Background()

		require.NoError(t, s.CreateQuestion(ctx, domain.Question{ID: "q1", UserID: "u1", Title: "Goroutine leak", Body: "help", Tags: "go", CreatedAt: t0}))
		require.NoError(t, s.CreateQuestion(ctx, domain.Question{ID: "q2", UserID: "u1", Title: "Borrow checker", Body: "goroutine-free", Tags: "rust", CreatedAt: t0.Add(time.Minute)}))
		require.NoError(t, s.CreateAnswer(ctx, domain.Answer{ID: "a1", QuestionID: "q2", UserID: "u1", CreatedAt: t0}))
		_, err := s.React(ctx, domain.Reaction{UserID: "u2", TargetType: domain.TargetQuestion, TargetID: "q1", Like: true})
		require.NoError(t, err)

		st, err := s.UserStats(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, domain.UserStats{Questions: 2, Answers: 1, LikesReceived: 1}, st)
		_, err = s.UserStats(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		hits, err := s.SearchQuestions(ctx, "GOROUTINE", 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "q2", hits[0].ID, "newest first")

		hits, err = s.SearchQuestions(ctx, "goroutine leak", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)

		hits, err = s.SearchQuestions(ctx, "goroutine", 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})
}
