package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// JournalKind category of a journal record.
type JournalKind string

const (
	JournalKindSuggestion  JournalKind = "suggestion"
	JournalKindTransaction JournalKind = "transaction"
	JournalKindTopUp       JournalKind = "top_up"
	JournalKindSale        JournalKind = "sale"
)

// IsValid reports whether k is one of the known kinds.
func (k JournalKind) IsValid() bool {
	switch k {
	case JournalKindSuggestion, JournalKindTransaction, JournalKindTopUp, JournalKindSale:
		return true
	}
	return false
}

// ParseJournalKinds parses a comma-separated kind list such as "transaction,top_up".
// An empty string yields nil, meaning every kind.
func ParseJournalKinds(s string) ([]JournalKind, error) {
	var kinds []JournalKind
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		kind := JournalKind(part)
		if !kind.IsValid() {
			return nil, errors.Errorf("unknown journal kind %q", part)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// Journal outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomePartial  = "partial_failure"
	OutcomeFailed   = "failed"
)

// JournalEvent audit record of an advisory suggestion or a transaction outcome.
// Decimal values are stored as strings.
type JournalEvent struct {
	Timestamp     time.Time   `json:"ts"`
	Kind          JournalKind `json:"kind"`
	RequestID     string      `json:"request_id,omitempty"`
	Outcome       string      `json:"outcome,omitempty"`
	Action        string      `json:"action,omitempty"`
	Amount        string      `json:"amount,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Price         string      `json:"price,omitempty"`
	GasPriceGwei  string      `json:"gas_price_gwei,omitempty"`
	CardBalance   string      `json:"card_balance,omitempty"`
	WalletBalance string      `json:"wallet_balance,omitempty"`
	TxHash        string      `json:"tx_hash,omitempty"`
	SaleTxHash    string      `json:"sale_tx_hash,omitempty"`
	EthSold       string      `json:"eth_sold,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// NewSuggestionEvent creates a journal record for an advisory suggestion.
func NewSuggestionEvent(timestamp time.Time, suggestion TradingSuggestion, balance, price string) JournalEvent {
	return JournalEvent{
		Timestamp:     timestamp,
		Kind:          JournalKindSuggestion,
		Action:        suggestion.Action.String(),
		Amount:        suggestion.Amount.String(),
		Reason:        suggestion.Reason,
		Price:         price,
		WalletBalance: balance,
	}
}

// JournalEventRecord bundles a journal event with its WAL index.
type JournalEventRecord struct {
	Index uint64
	Event JournalEvent
}

// JournalPage events matched by a journal read and the index the read scanned through.
// Passing Cursor to the next read resumes after every scanned record, matched or not.
type JournalPage struct {
	Records []JournalEventRecord
	Cursor  uint64
}
