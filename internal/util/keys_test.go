package util

import (
	"strings"
	"testing"
)

func TestStorageKeyShortAndHashed(t *testing.T) {
	if got := StorageKey("entry", "infodot", "questions:recent"); got != "entry:infodot:questions:recent" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("k", MaxKeyLen)
	a := StorageKey("entry", "infodot", long)
	b := StorageKey("entry", "infodot", long+"x")
	if len(a) > MaxKeyLen || !strings.HasPrefix(a, "entry:infodot:#") {
		t.Fatalf("long key not hashed: %q", a)
	}
	if a == b {
		t.Fatalf("distinct long keys collided")
	}
}

func TestParamKeyIsOrderIndependent(t *testing.T) {
	a := ParamKey("q", map[string]any{"limit": 10, "page": 2})
	b := ParamKey("q", map[string]any{"page": 2, "limit": 10})
	if a != b || a != "q:limit=10:page=2" {
		t.Fatalf("a=%q b=%q", a, b)
	}
	if ParamKey("q", map[string]any{"limit": 10}) == ParamKey("q", map[string]any{"limit": 20}) {
		t.Fatalf("different params share a key")
	}
	if ParamKey("q", nil) != "q" {
		t.Fatalf("no params should return base")
	}
}

func TestDedupTags(t *testing.T) {
	got := DedupTags([]string{" questions", "popular", "", "questions"})
	if strings.Join(got, ",") != "questions,popular" {
		t.Fatalf("got %v", got)
	}
	if DedupTags(nil) != nil {
		t.Fatalf("nil in, nil out")
	}
}
