// Package logrus adapts a logrus entry to tagcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/tagcache"
)

var _ tagcache.Logger = Logger{}

// Logger tags every line with component=tagcache. An "err" field holding an
// error is attached with WithError.
type Logger struct{ E *logrus.Entry }

func New(l logrus.FieldLogger) Logger {
	return Logger{E: l.WithField("component", "tagcache")}
}

func (l Logger) Debug(msg string, f tagcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f tagcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f tagcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f tagcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f tagcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		lf[k] = v
	}
	e := l.E
	if err, ok := lf["err"].(error); ok {
		delete(lf, "err")
		e = e.WithError(err)
	}
	return e.WithFields(lf)
}
