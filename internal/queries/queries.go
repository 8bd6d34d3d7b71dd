// Package queries implements the cached read operations of InfoDot. Each
// operation is a pure function of its parameters and store state, cached
// under a parameter-encoding key with the TTL and tags of its Policy.
package queries

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/internal/domain"
	"github.com/unkn0wn-root/tagcache/internal/store"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ClampLimit maps limit into [1, MaxLimit]; zero or negative means DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

type Service struct {
	db  store.Store
	inv tagcache.Invalidator
	log *zap.Logger

	questions tagcache.Cache[[]domain.Question]
	solutions tagcache.Cache[[]domain.Solution]
	profiles  tagcache.Cache[domain.UserProfile]
	tags      tagcache.Cache[[]domain.TagCount]
}

// New builds typed caches over cs. codecName is one of codec.Named's names.
func New(db store.Store, cs *tagcache.Store, codecName string, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Service{db: db, inv: cs, log: log.Named("queries")}

	var err error
	if svc.questions, err = newCache[[]domain.Question](cs, codecName); err != nil {
		return nil, err
	}
	if svc.solutions, err = newCache[[]domain.Solution](cs, codecName); err != nil {
		return nil, err
	}
	if svc.profiles, err = newCache[domain.UserProfile](cs, codecName); err != nil {
		return nil, err
	}
	if svc.tags, err = newCache[[]domain.TagCount](cs, codecName); err != nil {
		return nil, err
	}
	return svc, nil
}

func newCache[V any](cs *tagcache.Store, codecName string) (tagcache.Cache[V], error) {
	cd, err := codec.Named[V](codecName)
	if err != nil {
		return nil, err
	}
	return tagcache.New[V](cs, cd)
}

// PopularQuestions orders by answer count, then like count, both descending.
func (s *Service) PopularQuestions(ctx context.Context, limit int) ([]domain.Question, error) {
	limit = ClampLimit(limit)
	p := PopularQuestions
	return s.questions.GetOrCompute(ctx, p.Key(map[string]any{"limit": limit}), p.TTL, p.Tags,
		func(ctx context.Context) ([]domain.Question, error) {
			return s.db.ListQuestions(ctx, store.ListQuery{
				Sort: []store.SortKey{
					{Field: store.FieldAnswerCount, Desc: true},
					{Field: store.FieldLikeCount, Desc: true},
				},
				Limit: limit,
			})
		})
}

// RecentQuestions orders by creation time, newest first.
func (s *Service) RecentQuestions(ctx context.Context, limit int) ([]domain.Question, error) {
	limit = ClampLimit(limit)
	p := RecentQuestions
	return s.questions.GetOrCompute(ctx, p.Key(map[string]any{"limit": limit}), p.TTL, p.Tags,
		func(ctx context.Context) ([]domain.Question, error) {
			return s.db.ListQuestions(ctx, store.ListQuery{
				Sort:  []store.SortKey{{Field: store.FieldCreatedAt, Desc: true}},
				Limit: limit,
			})
		})
}

// PopularSolutions orders by like count, then comment count, both descending.
func (s *Service) PopularSolutions(ctx context.Context, limit int) ([]domain.Solution, error) {
	limit = ClampLimit(limit)
	p := PopularSolutions
	return s.solutions.GetOrCompute(ctx, p.Key(map[string]any{"limit": limit}), p.TTL, p.Tags,
		func(ctx context.Context) ([]domain.Solution, error) {
			return s.db.ListSolutions(ctx, store.ListQuery{
				Sort: []store.SortKey{
					{Field: store.FieldLikeCount, Desc: true},
					{Field: store.FieldCommentCount, Desc: true},
				},
				Limit: limit,
			})
		})
}

// UserProfile returns the user with activity counts. A missing user is
// domain.ErrNotFound and is not cached.
func (s *Service) UserProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	if userID == "" {
		return domain.UserProfile{}, fmt.Errorf("%w: user id is required", domain.ErrInvalid)
	}
	p := UserProfile
	return s.profiles.GetOrCompute(ctx, p.Key(map[string]any{"id": userID}), p.TTL, p.TagsFor(domain.UserTag(userID)),
		func(ctx context.Context) (domain.UserProfile, error) {
			u, err := s.db.GetUser(ctx, userID)
			if err != nil {
				return domain.UserProfile{}, err
			}
			st, err := s.db.UserStats(ctx, userID)
			if err != nil {
				return domain.UserProfile{}, err
			}
			return domain.UserProfile{User: u, Stats: st}, nil
		})
}

// TrendingTags counts tags across all questions and solutions.
func (s *Service) TrendingTags(ctx context.Context, limit int) ([]domain.TagCount, error) {
	limit = ClampLimit(limit)
	p := TrendingTags
	return s.tags.GetOrCompute(ctx, p.Key(map[string]any{"limit": limit}), p.TTL, p.Tags,
		func(ctx context.Context) ([]domain.TagCount, error) {
			qs, err := s.db.ListQuestions(ctx, store.ListQuery{})
			if err != nil {
				return nil, err
			}
			ss, err := s.db.ListSolutions(ctx, store.ListQuery{})
			if err != nil {
				return nil, err
			}
			return AggregateTags(qs, ss, limit), nil
		})
}

// AggregateTags parses free-text tags of questions then solutions, counts
// each distinct tag and returns the top limit by count. Equal counts keep
// first-seen order: questions in store order, then solutions.
func AggregateTags(qs []domain.Question, ss []domain.Solution, limit int) []domain.TagCount {
	idx := make(map[string]int)
	var out []domain.TagCount
	add := func(free string) {
		for _, t := range domain.ParseTags(free) {
			if i, ok := idx[t]; ok {
				out[i].Count++
				continue
			}
			idx[t] = len(out)
			out = append(out, domain.TagCount{Tag: t, Count: 1})
		}
	}
	for _, q := range qs {
		add(q.Tags)
	}
	for _, s := range ss {
		add(s.Tags)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.TagCount{}
	}
	return out
}

// Search matches every whitespace-separated term against question title,
// body and tags, newest first.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]domain.Question, error) {
	norm := strings.Join(store.SearchTerms(query), " ")
	if norm == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrInvalid)
	}
	limit = ClampLimit(limit)
	p := SearchQuestions
	return s.questions.GetOrCompute(ctx, p.Key(map[string]any{"limit": limit, "q": norm}), p.TTL, p.Tags,
		func(ctx context.Context) ([]domain.Question, error) {
			return s.db.SearchQuestions(ctx, norm, limit)
		})
}

// WarmUp computes the default parameterization of every list operation.
// Failures are joined; a partial warm-up still populates what it can.
func (s *Service) WarmUp(ctx context.Context) error {
	var errs []error
	if _, err := s.PopularQuestions(ctx, DefaultLimit); err != nil {
		errs = append(errs, fmt.Errorf("popular questions: %w", err))
	}
	if _, err := s.RecentQuestions(ctx, DefaultLimit); err != nil {
		errs = append(errs, fmt.Errorf("recent questions: %w", err))
	}
	if _, err := s.PopularSolutions(ctx, DefaultLimit); err != nil {
		errs = append(errs, fmt.Errorf("popular solutions: %w", err))
	}
	if _, err := s.TrendingTags(ctx, DefaultLimit); err != nil {
		errs = append(errs, fmt.Errorf("trending tags: %w", err))
	}
	err := errors.Join(errs...)
	if err != nil {
		s.log.Warn("cache warm-up incomplete", zap.Error(err))
	} else {
		s.log.Debug("cache warmed")
	}
	return err
}

// Flush drops every entry written by a read policy.
func (s *Service) Flush(ctx context.Context) error {
	return s.inv.InvalidateTags(ctx, AllTags()...)
}
