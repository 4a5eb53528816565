// Package feed carries "new changes committed" signals from the store to the
// trigger engine. Signals only wake consumers early; the durable change log is
// the source of truth, so a lost signal costs at most one poll interval.
package feed

import (
	"context"
	"sync"
)

// Bus publishes and delivers entity-stream wake-up signals.
type Bus interface {
	Publish(ctx context.Context, entity string) error
	Subscribe(ctx context.Context) (<-chan string, error)
	Close() error
}

const subscriberBuffer = 64

// LocalBus is an in-process Bus.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[chan string]struct{}
	closed bool
}

// NewLocalBus constructs an in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[chan string]struct{})}
}

// Publish never blocks; a subscriber with a full buffer already has a pending wake-up.
func (b *LocalBus) Publish(_ context.Context, entity string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for ch := range b.subs {
		select {
		case ch <- entity:
		default:
		}
	}
	return nil
}

// Subscribe registers a receiver that is removed when ctx ends.
func (b *LocalBus) Subscribe(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}()

	return ch, nil
}

// Close releases every subscriber.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}
