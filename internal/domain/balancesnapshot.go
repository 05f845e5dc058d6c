package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceState card and wallet balances at a rest point.
type BalanceState struct {
	// Card fiat balance of the spending card.
	Card decimal.Decimal
	// Wallet ETH balance of the linked wallet.
	Wallet decimal.Decimal
}

// BalanceSnapshot balance state published to stream subscribers.
// Uses string fields to avoid float precision issues when consumed by web/UI layers.
type BalanceSnapshot struct {
	Timestamp time.Time `json:"ts"`
	Card      string    `json:"card"`
	Wallet    string    `json:"wallet"`
	Reason    string    `json:"reason,omitempty"`
}

// NewBalanceSnapshot creates a new BalanceSnapshot.
func NewBalanceSnapshot(timestamp time.Time, state BalanceState, reason string) BalanceSnapshot {
	return BalanceSnapshot{
		Timestamp: timestamp,
		Card:      state.Card.StringFixed(2),
		Wallet:    state.Wallet.String(),
		Reason:    reason,
	}
}
