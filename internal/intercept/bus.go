// Package intercept wraps the two process-wide request APIs and turns the
// calls made through them into record lifecycle events.
package intercept

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/record"
)

// Bus fans adapter events out to listeners. Dispatch is synchronous and in
// subscription order. A listener that panics is logged and skipped so the
// fault never reaches the code that issued the request.
type Bus struct {
	mu        sync.RWMutex
	listeners []busListener
	nextKey   int
	log       *zap.Logger
}

type busListener struct {
	key int
	l   record.Listener
}

// NewBus creates a bus with no listeners.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log}
}

// Subscribe adds l and returns a func that removes it.
func (b *Bus) Subscribe(l record.Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := b.nextKey
	b.nextKey++
	b.listeners = append(b.listeners, busListener{key: key, l: l})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, bl := range b.listeners {
			if bl.key == key {
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnSend implements record.Listener.
func (b *Bus) OnSend(id string, initial record.Record) {
	for _, l := range b.snapshot() {
		b.dispatch("send", id, func() { l.OnSend(id, initial) })
	}
}

// OnUpdate implements record.Listener.
func (b *Bus) OnUpdate(id string, p record.Patch) {
	for _, l := range b.snapshot() {
		b.dispatch("update", id, func() { l.OnUpdate(id, p) })
	}
}

func (b *Bus) snapshot() []record.Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]record.Listener, len(b.listeners))
	for i, bl := range b.listeners {
		out[i] = bl.l
	}
	return out
}

func (b *Bus) dispatch(event, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("listener panicked",
				zap.String("event", event),
				zap.String("id", id),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
