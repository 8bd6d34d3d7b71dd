package util

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// MaxKeyLen bounds storage keys; longer user keys are replaced by a digest.
const MaxKeyLen = 250

// StorageKey returns "<prefix>:<ns>:<key>", hashing the key when the result
// would exceed MaxKeyLen.
func StorageKey(prefix, ns, key string) string {
	k := prefix + ":" + ns + ":" + key
	if len(k) <= MaxKeyLen {
		return k
	}
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:%s:#%x", prefix, ns, sum[:16])
}

// ParamKey renders base plus sorted name=value pairs, e.g.
// ParamKey("questions:popular", map[string]any{"limit": 10}) = "questions:popular:limit=10".
func ParamKey(base string, params map[string]any) string {
	if len(params) == 0 {
		return base
	}
	names := make([]string, 0, len(params))
	for n := range params {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(base)
	for _, n := range names {
		b.WriteByte(':')
		b.WriteString(n)
		b.WriteByte('=')
		fmt.Fprint(&b, params[n])
	}
	return b.String()
}

// DedupTags trims, drops empty and duplicate tags, keeping first-seen order.
func DedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
