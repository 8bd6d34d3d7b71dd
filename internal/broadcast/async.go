package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Async hands publishes to a background worker so request handlers never
// wait on a transport. A full queue drops the message.
type Async struct {
	inner   Publisher
	timeout time.Duration
	log     *zap.Logger

	q       chan Message
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func NewAsync(inner Publisher, queue int, timeout time.Duration, log *zap.Logger) *Async {
	if queue <= 0 {
		queue = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &Async{inner: inner, timeout: timeout, log: log.Named("broadcast"), q: make(chan Message, queue)}
	a.wg.Add(1)
	go a.loop()
	return a
}

// Publish enqueues and returns immediately; transport errors are logged.
func (a *Async) Publish(_ context.Context, channel, event string, payload map[string]any) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return nil
	}
	select {
	case a.q <- Message{Channel: channel, Event: event, Payload: payload, SentAt: time.Now()}:
	default:
		a.dropped.Add(1)
		a.log.Warn("broadcast queue full, dropping", zap.String("channel", channel), zap.String("event", event))
	}
	return nil
}

func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Close delivers what is queued and stops the worker.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.q)
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *Async) loop() {
	defer a.wg.Done()
	for m := range a.q {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.inner.Publish(ctx, m.Channel, m.Event, m.Payload); err != nil {
			a.log.Warn("broadcast failed",
				zap.String("channel", m.Channel),
				zap.String("event", m.Event),
				zap.Error(err))
		}
		cancel()
	}
}
