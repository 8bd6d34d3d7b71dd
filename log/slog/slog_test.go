package slog

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	"github.com/unkn0wn-root/tagcache"
)

func TestLoggerGroupsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})))

	l.Info("flushed tags", tagcache.Fields{"keys": 2, "tags": []string{"questions"}})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	group, ok := rec["cache"].(map[string]any)
	if !ok {
		t.Fatalf("missing cache group: %v", rec)
	}
	if group["keys"] != float64(2) {
		t.Fatalf("group=%v", group)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelWarn})))
	l.Debug("noise", tagcache.Fields{"k": 1})
	if buf.Len() != 0 {
		t.Fatalf("debug line written at warn level: %q", buf.String())
	}
}
