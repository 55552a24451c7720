package realtime

import "sync"

// Broadcaster publishes events to live subscribers (SSE streams, websockets).
type Broadcaster[T any] struct {
	mu   sync.Mutex
	subs map[chan T]struct{}
	size int
}

// NewBroadcaster creates an empty broadcaster whose subscriber channels buffer
// up to size events.
func NewBroadcaster[T any](size int) *Broadcaster[T] {
	if size <= 0 {
		size = 10
	}
	return &Broadcaster[T]{
		subs: make(map[chan T]struct{}),
		size: size,
	}
}

// Subscribe registers a new subscriber and returns its event channel.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, b.size)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers an event to all subscribers.
func (b *Broadcaster[T]) Publish(event T) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Drop if the subscriber is lagging; the next snapshot catches it up.
		}
	}
	b.mu.Unlock()
}

// Len reports the number of live subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
