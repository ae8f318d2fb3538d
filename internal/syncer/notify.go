package syncer

import "sync"

// broadcaster fans change signals out to subscribers without blocking
// the notifier. Each subscriber gets a buffered channel; a signal that
// arrives while one is already pending is coalesced.
type broadcaster struct {
	mu   sync.Mutex
	subs []chan struct{}
}

// Subscribe registers a new subscriber channel.
func (b *broadcaster) Subscribe() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{}, 1)
	b.subs = append(b.subs, ch)

	return ch
}

// notify signals every subscriber. Never blocks.
func (b *broadcaster) notify() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
