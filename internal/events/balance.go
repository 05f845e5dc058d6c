// Package events fans balance snapshots out to live subscribers.
package events

import (
	"sync"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

// BalanceBroadcaster fans out snapshots to all subscribers via buffered channels
// and remembers the latest one for late joiners.
type BalanceBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan domain.BalanceSnapshot]struct{}
	buffer int
	latest *domain.BalanceSnapshot
}

// NewBalanceBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBalanceBroadcaster(buffer int) *BalanceBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &BalanceBroadcaster{
		subs:   make(map[chan domain.BalanceSnapshot]struct{}),
		buffer: buffer,
	}
}

// Publish sends the snapshot to all subscribers, dropping if a reader is slow.
func (b *BalanceBroadcaster) Publish(s domain.BalanceSnapshot) {
	b.mu.Lock()
	b.latest = &s
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- s:
		default:
			// drop slow consumer
		}
	}
}

// Latest returns the most recently published snapshot.
func (b *BalanceBroadcaster) Latest() (domain.BalanceSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return domain.BalanceSnapshot{}, false
	}
	return *b.latest, true
}

// Subscribe returns a channel that receives snapshots until Unsubscribe is called.
func (b *BalanceBroadcaster) Subscribe() chan domain.BalanceSnapshot {
	ch := make(chan domain.BalanceSnapshot, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *BalanceBroadcaster) Unsubscribe(ch chan domain.BalanceSnapshot) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers number of active subscriptions.
func (b *BalanceBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
