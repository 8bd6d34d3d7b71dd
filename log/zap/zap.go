// Package zap adapts a *zap.Logger to tagcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/tagcache"
)

var _ tagcache.Logger = Logger{}

// Logger writes under the "tagcache" logger name. Fields are emitted in key
// order; an "err" field holding an error becomes zap.Error.
type Logger struct{ L *zap.Logger }

func New(l *zap.Logger) Logger { return Logger{L: l.Named("tagcache")} }

func (z Logger) Debug(msg string, f tagcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f tagcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f tagcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f tagcache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f tagcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
