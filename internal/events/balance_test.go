package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

func TestBalanceBroadcaster_PublishSubscribe(t *testing.T) {
	b := NewBalanceBroadcaster(4)

	_, ok := b.Latest()
	assert.False(t, ok)

	first := b.Subscribe()
	second := b.Subscribe()
	assert.Equal(t, 2, b.Subscribers())

	snapshot := domain.BalanceSnapshot{Timestamp: time.Now(), Card: "150.00", Wallet: "0.2", Reason: "withdrawal"}
	b.Publish(snapshot)

	for _, ch := range []chan domain.BalanceSnapshot{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, "150.00", got.Card)
		case <-time.After(time.Second):
			t.Fatal("snapshot not delivered")
		}
	}

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, "withdrawal", latest.Reason)

	b.Unsubscribe(first)
	_, open := <-first
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())

	// unsubscribing twice is a no-op
	b.Unsubscribe(first)
}

func TestBalanceBroadcaster_DropsSlowConsumer(t *testing.T) {
	b := NewBalanceBroadcaster(1)
	ch := b.Subscribe()

	b.Publish(domain.BalanceSnapshot{Card: "1.00"})
	b.Publish(domain.BalanceSnapshot{Card: "2.00"})

	got := <-ch
	assert.Equal(t, "1.00", got.Card)
	select {
	case <-ch:
		t.Fatal("second snapshot should have been dropped")
	default:
	}

	latest, _ := b.Latest()
	assert.Equal(t, "2.00", latest.Card)
}
