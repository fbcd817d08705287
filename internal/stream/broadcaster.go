package stream

import (
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 16

// Broadcaster fans values out to every subscriber. Subscribers that fall
// behind by more than the buffer miss values rather than block the sender.
type Broadcaster[T any] struct {
	subscribers map[uint64]chan T
	nextID      atomic.Uint64
	closed      bool
	mu          sync.RWMutex
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subscribers: make(map[uint64]chan T),
	}
}

// Subscribe returns a closed channel once the broadcaster is closed.
func (b *Broadcaster[T]) Subscribe() (uint64, <-chan T) {
	id := b.nextID.Add(1)
	ch := make(chan T, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subscribers[id] = ch
	}
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster[T]) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster[T]) Broadcast(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, ending any stream reading from them.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
