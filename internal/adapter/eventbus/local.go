// internal/adapter/eventbus/local.go

package eventbus

import (
	"context"
	"sort"
	"sync"

	"orcast/internal/domain/lifecycle"
)

// LocalBus delivers events synchronously to in-process subscribers, in
// publish order. It is used when no NATS server is configured.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[int]lifecycle.Handler
	nextID   int
}

// NewLocalBus creates an empty in-process bus
func NewLocalBus() *LocalBus {
	return &LocalBus{
		handlers: make(map[int]lifecycle.Handler),
	}
}

// Publish calls every subscriber with e
func (b *LocalBus) Publish(ctx context.Context, e lifecycle.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	handlers := make([]lifecycle.Handler, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
	return nil
}

// Subscribe registers handler until the returned func is called
func (b *LocalBus) Subscribe(handler lifecycle.Handler) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}, nil
}
