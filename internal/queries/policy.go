package queries

import (
	"strings"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/domain"
	"github.com/unkn0wn-root/tagcache/internal/util"
)

// Policy fixes the cache key base, TTL and tags of one read operation.
type Policy struct {
	Name string
	TTL  time.Duration
	Tags []string
}

var (
	PopularQuestions = Policy{"questions:popular", 300 * time.Second, []string{domain.TagQuestions, domain.TagPopular}}
	RecentQuestions  = Policy{"questions:recent", 60 * time.Second, []string{domain.TagQuestions, domain.TagRecent}}
	PopularSolutions = Policy{"solutions:popular", 300 * time.Second, []string{domain.TagSolutions, domain.TagPopular}}
	UserProfile      = Policy{"users:profile", 600 * time.Second, []string{domain.TagUsers}}
	TrendingTags     = Policy{"tags:trending", 3600 * time.Second, []string{domain.TagTags, domain.TagTrending}}
	SearchQuestions  = Policy{"questions:search", 60 * time.Second, []string{domain.TagQuestions, domain.TagSearch}}
)

// Policies lists every read policy.
var Policies = []Policy{PopularQuestions, RecentQuestions, PopularSolutions, UserProfile, TrendingTags, SearchQuestions}

// Key encodes every parameter so distinct parameterizations never share an entry.
func (p Policy) Key(params map[string]any) string { return util.ParamKey(p.Name, params) }

// TagsFor appends per-call tags to the fixed set.
func (p Policy) TagsFor(extra ...string) []string {
	out := make([]string, 0, len(p.Tags)+len(extra))
	out = append(out, p.Tags...)
	return append(out, extra...)
}

// OpLabel maps a storage key back to its policy name with ':' as '_', for
// metric labels. Keys outside the table map to "other".
func OpLabel(storageKey string) string {
	for _, p := range Policies {
		if strings.Contains(storageKey, ":"+p.Name+":") || strings.HasSuffix(storageKey, ":"+p.Name) {
			return strings.ReplaceAll(p.Name, ":", "_")
		}
	}
	return "other"
}

// AllTags is every tag a policy writes under, for a full flush.
func AllTags() []string {
	var tags []string
	for _, p := range Policies {
		tags = append(tags, p.Tags...)
	}
	return util.DedupTags(tags)
}
