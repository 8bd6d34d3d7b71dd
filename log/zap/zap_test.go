package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/tagcache"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Warn("cache write failed", tagcache.Fields{"key": "q:1", "err": errors.New("boom")})
	l.Debug("flushed tags", nil)

	all := logs.All()
	if len(all) != 2 {
		t.Fatalf("entries=%d", len(all))
	}
	e := all[0]
	if e.LoggerName != "tagcache" || e.Level != zapcore.WarnLevel {
		t.Fatalf("name=%q level=%v", e.LoggerName, e.Level)
	}
	ctx := e.ContextMap()
	if ctx["key"] != "q:1" || ctx["error"] != "boom" {
		t.Fatalf("context=%v", ctx)
	}
	if len(all[1].Context) != 0 {
		t.Fatalf("nil fields should add no context")
	}
}
