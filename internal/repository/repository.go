// Package repository persists InfoDot entities and runs their post-commit
// callbacks: cache invalidation for every mutation and a broadcast when a
// question or answer is created. Callback failures are logged and never
// fail the mutation that triggered them.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/internal/broadcast"
	"github.com/unkn0wn-root/tagcache/internal/domain"
	"github.com/unkn0wn-root/tagcache/internal/store"
)

type Repository struct {
	db  store.Store
	inv tagcache.Invalidator
	pub broadcast.Publisher
	log *zap.Logger

	now   func() time.Time
	newID func() string
}

type Option func(*Repository)

func WithClock(now func() time.Time) Option { return func(r *Repository) { r.now = now } }
func WithIDs(gen func() string) Option { return func(r *Repository) { r.newID = gen } }

// New wires db to the cache invalidator and publisher. A nil publisher
// disables broadcasts.
func New(db store.Store, inv tagcache.Invalidator, pub broadcast.Publisher, log *zap.Logger, opts ...Option) *Repository {
	if pub == nil {
		pub = broadcast.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Repository{db: db, inv: inv, pub: pub, log: log.Named("repository"), now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Repository) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if strings.TrimSpace(u.Name) == "" {
		return domain.User{}, invalid("user name is required")
	}
	if u.ID == "" {
		u.ID = r.newID()
	}
	u.CreatedAt = r.now().UTC()
	if err := r.db.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	r.invalidate(ctx, u)
	return u, nil
}

func (r *Repository) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	if strings.TrimSpace(q.Title) == "" {
		return domain.Question{}, invalid("question title is required")
	}
	q.ID = r.newID()
	q.CreatedAt = r.now().UTC()
	q.UpdatedAt = q.CreatedAt
	q.LikeCount, q.DislikeCount, q.AnswerCount = 0, 0, 0
	if err := r.db.CreateQuestion(ctx, q); err != nil {
		return domain.Question{}, err
	}
	r.invalidate(ctx, q)
	r.announce(ctx, q.UserID, func(ctx context.Context, author domain.User) error {
		return broadcast.AnnounceQuestion(ctx, r.pub, q, author)
	})
	return q, nil
}

// UpdateQuestion replaces title, body and tags. Counters and ownership are
// kept by the store.
func (r *Repository) UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	if q.ID == "" {
		return domain.Question{}, invalid("question id is required")
	}
	q.UpdatedAt = r.now().UTC()
	if err := r.db.UpdateQuestion(ctx, q); err != nil {
		return domain.Question{}, err
	}
	saved, err := r.db.GetQuestion(ctx, q.ID)
	if err != nil {
		return domain.Question{}, err
	}
	r.invalidate(ctx, saved)
	return saved, nil
}

// DeleteQuestion also refreshes the profiles of everyone whose answers went
// with the question.
func (r *Repository) DeleteQuestion(ctx context.Context, id string) error {
	q, answers, err := r.db.DeleteQuestion(ctx, id)
	if err != nil {
		return err
	}
	extra := make([]string, 0, len(answers))
	for _, a := range answers {
		extra = append(extra, domain.UserTag(a.UserID))
		if r.inv != nil {
			if err := r.inv.InvalidateKey(context.WithoutCancel(ctx), a.CacheKey()); err != nil {
				r.log.Warn("invalidate key failed", zap.String("key", a.CacheKey()), zap.Error(err))
			}
		}
	}
	r.invalidate(ctx, q, extra...)
	return nil
}

func (r *Repository) CreateAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	if strings.TrimSpace(a.Body) == "" {
		return domain.Answer{}, invalid("answer body is required")
	}
	a.ID = r.newID()
	a.CreatedAt = r.now().UTC()
	a.UpdatedAt = a.CreatedAt
	a.LikeCount = 0
	if err := r.db.CreateAnswer(ctx, a); err != nil {
		return domain.Answer{}, err
	}
	r.invalidate(ctx, a)
	r.announce(ctx, a.UserID, func(ctx context.Context, author domain.User) error {
		return broadcast.AnnounceAnswer(ctx, r.pub, a, author)
	})
	return a, nil
}

func (r *Repository) CreateSolution(ctx context.Context, s domain.Solution) (domain.Solution, error) {
	if strings.TrimSpace(s.Title) == "" {
		return domain.Solution{}, invalid("solution title is required")
	}
	s.ID = r.newID()
	s.CreatedAt = r.now().UTC()
	s.UpdatedAt = s.CreatedAt
	s.LikeCount, s.DislikeCount, s.CommentCount = 0, 0, 0
	if err := r.db.CreateSolution(ctx, s); err != nil {
		return domain.Solution{}, err
	}
	r.invalidate(ctx, s)
	return s, nil
}

func (r *Repository) CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	if strings.TrimSpace(c.Body) == "" {
		return domain.Comment{}, invalid("comment body is required")
	}
	c.ID = r.newID()
	c.CreatedAt = r.now().UTC()
	if err := r.db.CreateComment(ctx, c); err != nil {
		return domain.Comment{}, err
	}
	r.invalidate(ctx, c, r.relatedTags(ctx, c.CommentableType, c.CommentableID)...)
	return c, nil
}

// React toggles r and returns the reaction left in place, nil if none.
func (r *Repository) React(ctx context.Context, re domain.Reaction) (*domain.Reaction, error) {
	got, err := r.db.React(ctx, re)
	if err != nil {
		return nil, err
	}
	// the target owner's received likes moved too
	r.invalidate(ctx, re, r.relatedTags(ctx, re.TargetType, re.TargetID)...)
	return got, nil
}

// relatedTags names the tags a comment or reaction reaches beyond its own:
// the question an answer belongs to and the target's owner.
func (r *Repository) relatedTags(ctx context.Context, typ, id string) []string {
	var tags []string
	switch typ {
	case domain.TargetQuestion:
		if q, err := r.db.GetQuestion(ctx, id); err == nil {
			tags = append(tags, domain.UserTag(q.UserID))
		}
	case domain.TargetAnswer:
		if a, err := r.db.GetAnswer(ctx, id); err == nil {
			tags = append(tags, domain.QuestionTag(a.QuestionID), domain.UserTag(a.UserID))
		}
	case domain.TargetSolution:
		if s, err := r.db.GetSolution(ctx, id); err == nil {
			tags = append(tags, domain.UserTag(s.UserID))
		}
	}
	return tags
}

// invalidate drops e's own entry and everything under its tags. It runs
// after commit, so a cancelled request must not stop it.
func (r *Repository) invalidate(ctx context.Context, e domain.Cacheable, extra ...string) {
	if r.inv == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := r.inv.InvalidateKey(ctx, e.CacheKey()); err != nil {
		r.log.Warn("invalidate key failed", zap.String("key", e.CacheKey()), zap.Error(err))
	}
	tags := append(e.CacheTags(), extra...)
	if err := r.inv.InvalidateTags(ctx, tags...); err != nil {
		r.log.Warn("invalidate tags failed", zap.Strings("tags", tags), zap.Error(err))
	}
}

func (r *Repository) announce(ctx context.Context, userID string, send func(context.Context, domain.User) error) {
	ctx = context.WithoutCancel(ctx)
	author, err := r.db.GetUser(ctx, userID)
	if err != nil {
		r.log.Warn("broadcast skipped, author lookup failed", zap.String("user", userID), zap.Error(err))
		return
	}
	if err := send(ctx, author); err != nil {
		r.log.Warn("broadcast failed", zap.String("user", userID), zap.Error(err))
	}
}

func invalid(msg string) error { return fmt.Errorf("%w: %s", domain.ErrInvalid, msg) }
