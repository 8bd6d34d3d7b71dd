// Package domain holds the InfoDot entities and the cache identity each one
// declares: a direct key plus the tags its changes invalidate.
package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

// Shared tag names. Per-entity tags are built with the helpers below.
const (
	TagQuestions = "questions"
	TagSolutions = "solutions"
	TagUsers     = "users"
	TagTags      = "tags"
	TagPopular   = "popular"
	TagRecent    = "recent"
	TagTrending  = "trending"
	TagSearch    = "search"
)

func UserTag(id string) string     { return "user:" + id }
func QuestionTag(id string) string { return "question:" + id }
func SolutionTag(id string) string { return "solution:" + id }

// Cacheable is implemented by entities whose writes invalidate cached reads.
type Cacheable interface {
	CacheKey() string
	CacheTags() []string
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) CacheKey() string    { return "user:" + u.ID }
func (u User) CacheTags() []string { return []string{TagUsers, UserTag(u.ID)} }

type Question struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Tags         string    `json:"tags"` // comma separated, as entered
	LikeCount    int       `json:"like_count"`
	DislikeCount int       `json:"dislike_count"`
	AnswerCount  int       `json:"answer_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (q Question) CacheKey() string { return "question:" + q.ID }

// Question writes move popular/recent lists, the author's stats and trending tags.
func (q Question) CacheTags() []string {
	return []string{TagQuestions, QuestionTag(q.ID), UserTag(q.UserID), TagTags}
}

type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	UserID     string    `json:"user_id"`
	Body       string    `json:"body"`
	IsAccepted bool      `json:"is_accepted"`
	LikeCount  int       `json:"like_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a Answer) CacheKey() string { return "answer:" + a.ID }

// Answers change their question's answer count, so question lists go too.
func (a Answer) CacheTags() []string {
	return []string{TagQuestions, QuestionTag(a.QuestionID), UserTag(a.UserID)}
}

type Step struct {
	Position    int    `json:"position"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Solution struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Tags         string    `json:"tags"`
	Steps        []Step    `json:"steps,omitempty"`
	LikeCount    int       `json:"like_count"`
	DislikeCount int       `json:"dislike_count"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s Solution) CacheKey() string { return "solution:" + s.ID }

func (s Solution) CacheTags() []string {
	return []string{TagSolutions, SolutionTag(s.ID), UserTag(s.UserID), TagTags}
}

// Commentable targets.
const (
	TargetQuestion = "question"
	TargetAnswer   = "answer"
	TargetSolution = "solution"
)

type Comment struct {
	ID              string    `json:"id"`
	CommentableType string    `json:"commentable_type"`
	CommentableID   string    `json:"commentable_id"`
	UserID          string    `json:"user_id"`
	Body            string    `json:"body"`
	CreatedAt       time.Time `json:"created_at"`
}

func (c Comment) CacheKey() string { return "comment:" + c.ID }

func (c Comment) CacheTags() []string {
	return append(targetTags(c.CommentableType, c.CommentableID), UserTag(c.UserID))
}

type Reaction struct {
	UserID     string `json:"user_id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Like       bool   `json:"like"` // false = dislike
}

func (r Reaction) CacheKey() string {
	return "reaction:" + r.TargetType + ":" + r.TargetID + ":" + r.UserID
}

func (r Reaction) CacheTags() []string {
	return append(targetTags(r.TargetType, r.TargetID), UserTag(r.UserID))
}

func targetTags(typ, id string) []string {
	switch typ {
	case TargetQuestion:
		return []string{TagQuestions, QuestionTag(id)}
	case TargetSolution:
		return []string{TagSolutions, SolutionTag(id)}
	case TargetAnswer:
		// answers appear under their question; the question id is not known here
		return []string{TagQuestions}
	}
	return nil
}

// UserStats are activity counts shown on a profile.
type UserStats struct {
	Questions     int `json:"questions"`
	Answers       int `json:"answers"`
	Solutions     int `json:"solutions"`
	Comments      int `json:"comments"`
	LikesReceived int `json:"likes_received"`
}

type UserProfile struct {
	User  User      `json:"user"`
	Stats UserStats `json:"stats"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ParseTags splits free-text tags on commas, trims each token and drops empty
// ones. Duplicates are kept; callers counting frequency want them.
func ParseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
