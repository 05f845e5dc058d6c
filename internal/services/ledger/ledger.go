// Package ledger holds the card and wallet balances and the threshold policy.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

// Policy card replenishment thresholds, in USD.
type Policy struct {
	// MinThreshold a card balance strictly below it needs a top-up.
	MinThreshold decimal.Decimal
	// TargetBalance balance a top-up aims to restore.
	TargetBalance decimal.Decimal
}

// DefaultPolicy returns the $100 threshold / $200 target policy.
func DefaultPolicy() Policy {
	return Policy{
		MinThreshold:  decimal.NewFromInt(100),
		TargetBalance: decimal.NewFromInt(200),
	}
}

type snapshotPublisher interface {
	Publish(s domain.BalanceSnapshot)
}

type balanceGauge interface {
	SetBalances(card, wallet decimal.Decimal)
}

// Ledger owns the card (USD) and wallet (ETH) balances for the lifetime of the process.
type Ledger struct {
	mu        sync.RWMutex
	card      decimal.Decimal
	wallet    decimal.Decimal
	policy    Policy
	logger    *zap.Logger
	publisher snapshotPublisher
	gauge     balanceGauge
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithPublisher publishes a snapshot after every mutation.
func WithPublisher(p snapshotPublisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// WithGauge reports balances after every mutation.
func WithGauge(g balanceGauge) Option {
	return func(l *Ledger) {
		l.gauge = g
	}
}

// New creates a ledger seeded with the given balances.
func New(card, wallet decimal.Decimal, policy Policy, logger *zap.Logger, opts ...Option) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if card.IsNegative() || wallet.IsNegative() {
		return nil, errors.Errorf("seed balances must be non-negative, got card %s wallet %s", card, wallet)
	}
	if !policy.TargetBalance.GreaterThan(policy.MinThreshold) {
		return nil, errors.Errorf("target balance %s must exceed threshold %s", policy.TargetBalance, policy.MinThreshold)
	}

	l := &Ledger{
		card:   card,
		wallet: wallet,
		policy: policy,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}

	logger.Info("ledger init",
		zap.String("card", card.StringFixed(2)),
		zap.String("wallet", wallet.String()),
		zap.String("min_threshold", policy.MinThreshold.String()),
		zap.String("target", policy.TargetBalance.String()))
	l.notify("seed")

	return l, nil
}

// Policy returns the threshold policy.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// CardBalance returns the card balance in USD.
func (l *Ledger) CardBalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.card
}

// WalletBalance returns the wallet balance in ETH.
func (l *Ledger) WalletBalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.wallet
}

// Snapshot returns both balances read under one lock.
func (l *Ledger) Snapshot() domain.BalanceState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.BalanceState{Card: l.card, Wallet: l.wallet}
}

// EvaluateThreshold decides whether balance needs a top-up. Pure.
func (l *Ledger) EvaluateThreshold(balance decimal.Decimal) domain.ThresholdDecision {
	if balance.LessThan(l.policy.MinThreshold) {
		return domain.ThresholdDecision{
			Action: domain.ThresholdTopUp,
			Amount: l.policy.TargetBalance.Sub(balance).RoundBank(2),
			Reason: fmt.Sprintf("Balance $%s below minimum threshold $%s", balance.String(), l.policy.MinThreshold.String()),
		}
	}

	return domain.ThresholdDecision{
		Action: domain.ThresholdSkip,
		Amount: decimal.Zero,
		Reason: fmt.Sprintf("Balance $%s above minimum threshold $%s", balance.String(), l.policy.MinThreshold.String()),
	}
}

// ApplyWithdrawal debits the card. The caller checks sufficiency beforehand.
func (l *Ledger) ApplyWithdrawal(amount decimal.Decimal) {
	l.mu.Lock()
	l.card = l.card.Sub(amount)
	l.mu.Unlock()

	l.logger.Info("card debited", zap.String("amount", amount.String()))
	l.notify("withdrawal")
}

// ApplySale debits the wallet by the ETH sold.
func (l *Ledger) ApplySale(eth decimal.Decimal) error {
	l.mu.Lock()
	if l.wallet.LessThan(eth) {
		have := l.wallet
		l.mu.Unlock()
		return errors.Errorf("insufficient ETH balance: have %s need %s", have.String(), eth.String())
	}
	l.wallet = l.wallet.Sub(eth)
	l.mu.Unlock()

	l.logger.Info("wallet debited", zap.String("eth", eth.String()))
	l.notify("sale")
	return nil
}

// ApplyTopUp credits the card and debits the wallet in one critical section.
func (l *Ledger) ApplyTopUp(cardDelta, walletDelta decimal.Decimal) error {
	l.mu.Lock()
	if l.wallet.LessThan(walletDelta) {
		have := l.wallet
		l.mu.Unlock()
		return errors.Errorf("insufficient ETH balance: have %s need %s", have.String(), walletDelta.String())
	}
	l.card = l.card.Add(cardDelta)
	l.wallet = l.wallet.Sub(walletDelta)
	l.mu.Unlock()

	l.logger.Info("top-up applied",
		zap.String("card_delta", cardDelta.String()),
		zap.String("wallet_delta", walletDelta.String()))
	l.notify("top_up")
	return nil
}

func (l *Ledger) notify(reason string) {
	if l.publisher == nil && l.gauge == nil {
		return
	}

	state := l.Snapshot()
	if l.gauge != nil {
		l.gauge.SetBalances(state.Card, state.Wallet)
	}
	if l.publisher != nil {
		l.publisher.Publish(domain.NewBalanceSnapshot(time.Now(), state, reason))
	}
}
