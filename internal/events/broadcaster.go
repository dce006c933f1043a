// Package events fans state changes and workflow events out to subscribers.
package events

import (
	"context"
	"sync"

	"github.com/fruitsalade/folderview/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

type subscriber[T any] struct {
	ch     chan T
	done   chan struct{}
	mu     sync.RWMutex // held for reading while sending on ch
	closed bool
}

// Broadcaster manages subscribers for one named stream and publishes values
// of type T to them.
type Broadcaster[T any] struct {
	name        string
	buffer      int
	mu          sync.RWMutex
	subscribers map[chan T]*subscriber[T]
	closed      bool
}

// NewBroadcaster creates a broadcaster for the named stream. The name only
// labels metrics.
func NewBroadcaster[T any](name string) *Broadcaster[T] {
	return NewBroadcasterSize[T](name, DefaultBuffer)
}

// NewBroadcasterSize creates a broadcaster whose subscriber channels hold up
// to buffer values.
func NewBroadcasterSize[T any](name string, buffer int) *Broadcaster[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &Broadcaster[T]{
		name:        name,
		buffer:      buffer,
		subscribers: make(map[chan T]*subscriber[T]),
	}
}

// Subscribe adds a new subscriber and returns its channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster[T]) Subscribe() chan T {
	s := &subscriber[T]{
		ch:   make(chan T, b.buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed {
		close(s.ch)
	} else {
		b.subscribers[s.ch] = s
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSubscribersActive(b.name, n)
	return s.ch
}

// Unsubscribe removes a subscriber and closes its channel. A PublishWait
// blocked on this subscriber is released.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	s, ok := b.subscribers[ch]
	delete(b.subscribers, ch)
	n := len(b.subscribers)
	b.mu.Unlock()
	if ok {
		s.shutdown()
	}
	metrics.SetSubscribersActive(b.name, n)
}

func (s *subscriber[T]) shutdown() {
	close(s.done)
	s.mu.Lock()
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
}

func (b *Broadcaster[T]) snapshot() []*subscriber[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]*subscriber[T], 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	return subs
}

// Publish sends v to all subscribers. Non-blocking: drops the value for
// slow consumers.
func (b *Broadcaster[T]) Publish(v T) {
	for _, s := range b.snapshot() {
		s.mu.RLock()
		if !s.closed {
			select {
			case s.ch <- v:
			default:
				metrics.RecordEventDropped(b.name)
			}
		}
		s.mu.RUnlock()
	}
}

// PublishWait sends v to every subscriber, blocking on full channels until
// the value is delivered, the subscriber leaves, or ctx ends. It returns
// ctx.Err() if a delivery was abandoned because of ctx.
func (b *Broadcaster[T]) PublishWait(ctx context.Context, v T) error {
	for _, s := range b.snapshot() {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			continue
		}
		select {
		case s.ch <- v:
		case <-s.done:
		case <-ctx.Done():
			s.mu.RUnlock()
			metrics.RecordEventDropped(b.name)
			return ctx.Err()
		}
		s.mu.RUnlock()
	}
	return nil
}

// Count returns the current number of subscribers.
func (b *Broadcaster[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes everyone. Later subscribers receive a closed channel.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[chan T]*subscriber[T])
	b.closed = true
	b.mu.Unlock()
	for _, s := range subs {
		s.shutdown()
	}
	metrics.SetSubscribersActive(b.name, 0)
}
