package logrus

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/tagcache"
)

func TestLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	base.SetOutput(io.Discard)
	l := New(base)

	boom := errors.New("boom")
	l.Error("invalidate failed", tagcache.Fields{"key": "q:1", "err": boom})

	e := hook.LastEntry()
	if e == nil || e.Level != logrus.ErrorLevel || e.Message != "invalidate failed" {
		t.Fatalf("entry=%+v", e)
	}
	if e.Data["component"] != "tagcache" || e.Data["key"] != "q:1" {
		t.Fatalf("data=%v", e.Data)
	}
	if e.Data[logrus.ErrorKey] != boom {
		t.Fatalf("error not attached: %v", e.Data)
	}
	if _, dup := e.Data["err"]; dup {
		t.Fatalf("err should be moved to the error key")
	}
}
