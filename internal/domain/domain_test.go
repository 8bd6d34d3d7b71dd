package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"go", "rust"}, ParseTags("go, rust"))
	assert.Equal(t, []string{"go", "go"}, ParseTags(" go ,, go ,"))
	assert.Empty(t, ParseTags(""))
	assert.Empty(t, ParseTags(" , ,"))
}

func TestCacheTags(t *testing.T) {
	q := Question{ID: "q1", UserID: "u1"}
	assert.ElementsMatch(t, []string{"questions", "question:q1", "user:u1", "tags"}, q.CacheTags())
	assert.Equal(t, "question:q1", q.CacheKey())

	a := Answer{ID: "a1", QuestionID: "q1", UserID: "u2"}
	assert.Contains(t, a.CacheTags(), "question:q1")
	assert.Contains(t, a.CacheTags(), "questions")

	c := Comment{CommentableType: TargetSolution, CommentableID: "s1", UserID: "u3"}
	assert.ElementsMatch(t, []string{"solutions", "solution:s1", "user:u3"}, c.CacheTags())

	r := Reaction{UserID: "u4", TargetType: TargetAnswer, TargetID: "a1"}
	assert.ElementsMatch(t, []string{"questions", "user:u4"}, r.CacheTags())

	var _ Cacheable = User{}
	var _ Cacheable = Solution{}
}
