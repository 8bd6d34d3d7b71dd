package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/internal/broadcast"
	"github.com/unkn0wn-root/tagcache/internal/domain"
	"github.com/unkn0wn-root/tagcache/internal/queries"
	memstore "github.com/unkn0wn-root/tagcache/internal/store/memory"
	"github.com/unkn0wn-root/tagcache/provider/memory"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type invalidations struct {
	mu   sync.Mutex
	keys []string
	tags []string
	err  error
}

func (i *invalidations) InvalidateKey(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	i.keys = append(i.keys, key)
	return i.err
}

func (i *invalidations) InvalidateTags(_ context.Context, tags ...string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tags = append(i.tags, tags...)
	return i.err
}

func (i *invalidations) reset() {
	i.mu.Lock()
	i.keys, i.tags = nil, nil
	i.mu.Unlock()
}

type published struct {
	mu   sync.Mutex
	msgs []broadcast.Message
	err  error
}

func (p *published) Publish(_ context.Context, channel, event string, payload map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, broadcast.Message{Channel: channel, Event: event, Payload: payload})
	return p.err
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

type fixture struct {
	repo *Repository
	db   *memstore.Store
	inv  *invalidations
	pub  *published
	logs *observer.ObservedLogs
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	f := fixture{db: memstore.New(), inv: &invalidations{}, pub: &published{}, logs: logs}
	f.repo = New(f.db, f.inv, f.pub, zap.New(core),
		WithClock(func() time.Time { return t0 }),
		WithIDs(sequentialIDs()))
	require.NoError(t, f.db.CreateUser(context.Background(), domain.User{ID: "u1", Name: "Ada"}))
	require.NoError(t, f.db.CreateUser(context.Background(), domain.User{ID: "u2", Name: "Linus"}))
	return f
}

func TestCreateQuestionInvalidatesAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	q, err := f.repo.CreateQuestion(context.Background(), domain.Question{UserID: "u1", Title: "Why?", Tags: "go", AnswerCount: 7})
	require.NoError(t, err)

	assert.Equal(t, "id1", q.ID)
	assert.Equal(t, t0, q.CreatedAt)
	assert.Zero(t, q.AnswerCount, "counters start at zero")

	assert.Equal(t, []string{"question:id1"}, f.inv.keys)
	assert.ElementsMatch(t, []string{domain.TagQuestions, "question:id1", "user:u1", domain.TagTags}, f.inv.tags)

	require.Len(t, f.pub.msgs, 1)
	m := f.pub.msgs[0]
	assert.Equal(t, broadcast.ChannelQuestions, m.Channel)
	assert.Equal(t, broadcast.EventQuestionCreated, m.Event)
	assert.Equal(t, "Ada", m.Payload["user_name"])
}

func TestCreateAnswerBroadcastsOnQuestionChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.repo.CreateQuestion(ctx, domain.Question{UserID: "u1", Title: "t"})
	require.NoError(t, err)
	f.inv.reset()

	a, err := f.repo.CreateAnswer(ctx, domain.Answer{QuestionID: q.ID, UserID: "u2", Body: "b"})
	require.NoError(t, err)
	assert.Contains(t, f.inv.tags, domain.QuestionTag(q.ID))
	assert.Contains(t, f.inv.tags, domain.TagQuestions)

	require.Len(t, f.pub.msgs, 2)
	assert.Equal(t, broadcast.QuestionChannel(q.ID), f.pub.msgs[1].Channel)
	assert.Equal(t, a.ID, f.pub.msgs[1].Payload["id"])
	assert.Equal(t, "Linus", f.pub.msgs[1].Payload["user_name"])
}

func TestCallbackFailuresDoNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.inv.err = errors.New("redis down")
	f.pub.err = errors.New("bus down")

	_, err := f.repo.CreateQuestion(context.Background(), domain.Question{UserID: "u1", Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.logs.FilterMessageSnippet("invalidate").Len())
	assert.Equal(t, 1, f.logs.FilterMessage("broadcast failed").Len())
}

func TestFailedWriteRunsNoCallbacks(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.CreateQuestion(context.Background(), domain.Question{UserID: "ghost", Title: "t"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.inv.keys)
	assert.Empty(t, f.pub.msgs)

	_, err = f.repo.CreateQuestion(context.Background(), domain.Question{UserID: "u1"})
	require.ErrorIs(t, err, domain.ErrInvalid)
	assert.ErrorIs(t, f.repo.DeleteQuestion(context.Background(), "nope"), domain.ErrNotFound)
	assert.Empty(t, f.inv.keys)
}

func TestCancelledRequestStillInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q, err := f.repo.CreateQuestion(ctx, domain.Question{UserID: "u1", Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"question:" + q.ID}, f.inv.keys)
	assert.Len(t, f.pub.msgs, 1)
}

func TestUpdateQuestionKeepsOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.repo.CreateQuestion(ctx, domain.Question{UserID: "u1", Title: "t"})
	require.NoError(t, err)
	f.inv.reset()

	got, err := f.repo.UpdateQuestion(ctx, domain.Question{ID: q.ID, UserID: "u2", Title: "t2", Tags: "rust"})
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "t2", got.Title)
	assert.Contains(t, f.inv.tags, domain.UserTag("u1"))
	assert.Contains(t, f.inv.tags, domain.TagTags)

	_, err = f.repo.UpdateQuestion(ctx, domain.Question{ID: "nope", Title: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReactionReachesAnswerQuestionAndOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.repo.CreateQuestion(ctx, domain.Question{UserID: "u1", Title: "t"})
	require.NoError(t, err)
	a, err := f.repo.CreateAnswer(ctx, domain.Answer{QuestionID: q.ID, UserID: "u2", Body: "b"})
	require.NoError(t, err)
	f.inv.reset()

	got, err := f.repo.React(ctx, domain.Reaction{UserID: "u1", TargetType: domain.TargetAnswer, TargetID: a.ID, Like: true})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Contains(t, f.inv.tags, domain.QuestionTag(q.ID))
	assert.Contains(t, f.inv.tags, domain.UserTag("u2"), "owner's received likes changed")
	assert.Contains(t, f.inv.tags, domain.UserTag("u1"))
}

func TestCommentOnSolutionReachesOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.repo.CreateSolution(ctx, domain.Solution{UserID: "u2", Title: "s"})
	require.NoError(t, err)
	f.inv.reset()

	c, err := f.repo.CreateComment(ctx, domain.Comment{CommentableType: domain.TargetSolution, CommentableID: s.ID, UserID: "u1", Body: "nice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"comment:" + c.ID}, f.inv.keys)
	assert.Contains(t, f.inv.tags, domain.SolutionTag(s.ID))
	assert.Contains(t, f.inv.tags, domain.UserTag("u2"))
}

// A cached popular list must reflect an answer created after it was cached.
func TestWritesRefreshCachedReads(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()
	cs, err := tagcache.NewStore(tagcache.Options{Namespace: "infodot:test", Provider: memory.New(memory.Config{})})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close(ctx) })
	svc, err := queries.New(db, cs, "msgpack", nil)
	require.NoError(t, err)
	repo := New(db, cs, nil, nil, WithIDs(sequentialIDs()))

	_, err = repo.CreateUser(ctx, domain.User{Name: "Ada"})
	require.NoError(t, err)
	q1, err := repo.CreateQuestion(ctx, domain.Question{UserID: "id1", Title: "first"})
	require.NoError(t, err)
	q2, err := repo.CreateQuestion(ctx, domain.Question{UserID: "id1", Title: "second"})
	require.NoError(t, err)

	popular, err := svc.PopularQuestions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, q1.ID, popular[0].ID)

	_, err = repo.CreateAnswer(ctx, domain.Answer{QuestionID: q2.ID, UserID: "id1", Body: "a"})
	require.NoError(t, err)

	popular, err = svc.PopularQuestions(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, q2.ID, popular[0].ID)
	assert.Equal(t, 1, popular[0].AnswerCount)

	profile, err := svc.UserProfile(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, 2, profile.Stats.Questions)

	require.NoError(t, repo.DeleteQuestion(ctx, q1.ID))
	profile, err = svc.UserProfile(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Stats.Questions)

	grace, err := repo.CreateUser(ctx, domain.User{Name: "Grace"})
	require.NoError(t, err)
	_, err = repo.CreateAnswer(ctx, domain.Answer{QuestionID: q2.ID, UserID: grace.ID, Body: "b"})
	require.NoError(t, err)
	profile, err = svc.UserProfile(ctx, grace.ID)
	require.NoError(t, err)
	require.Equal(t, 1, profile.Stats.Answers)

	// the question's answers go with it, and so do their authors' counts
	require.NoError(t, repo.DeleteQuestion(ctx, q2.ID))
	profile, err = svc.UserProfile(ctx, grace.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, profile.Stats.Answers)
}
