// Package advisor asks a language model for a buy/sell/hold recommendation on the
// wallet and clamps the reply to the allowed amounts.
package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cardfuel/internal/clients"
	"github.com/vadiminshakov/cardfuel/internal/domain"
	"github.com/vadiminshakov/cardfuel/internal/services/promptbuilder"
)

// DefaultTimeout bound on one completion request.
const DefaultTimeout = 20 * time.Second

type journal interface {
	Append(event domain.JournalEvent) error
}

type suggestionCounter interface {
	IncSuggestion(action string)
}

// Advisor never fails: transport or parse problems turn into a hold suggestion.
type Advisor struct {
	llm           clients.LLMClient
	promptBuilder *promptbuilder.PromptBuilder
	breaker       *gobreaker.CircuitBreaker
	timeout       time.Duration
	journal       journal
	counter       suggestionCounter
	logger        *zap.Logger
	now           func() time.Time
}

// Option configures the Advisor.
type Option func(*Advisor)

// WithJournal records every produced suggestion.
func WithJournal(j journal) Option {
	return func(a *Advisor) {
		a.journal = j
	}
}

// WithCounter counts suggestions by action.
func WithCounter(c suggestionCounter) Option {
	return func(a *Advisor) {
		a.counter = c
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Advisor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func New(llm clients.LLMClient, pb *promptbuilder.PromptBuilder, logger *zap.Logger, opts ...Option) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "advisor"))

	a := &Advisor{
		llm:           llm,
		promptBuilder: pb,
		breaker:       clients.NewBreaker("advisor", logger),
		timeout:       DefaultTimeout,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Suggest returns a clamped recommendation for balance (ETH) at price (USD).
func (a *Advisor) Suggest(ctx context.Context, balance, price decimal.Decimal) domain.TradingSuggestion {
	suggestion := a.suggest(ctx, balance, price)

	a.logger.Info("trading suggestion",
		zap.String("action", suggestion.Action.String()),
		zap.String("amount", suggestion.Amount.String()),
		zap.String("reason", suggestion.Reason))

	if a.counter != nil {
		a.counter.IncSuggestion(suggestion.Action.String())
	}
	if a.journal != nil {
		event := domain.NewSuggestionEvent(a.now(), suggestion, balance.String(), price.String())
		if err := a.journal.Append(event); err != nil {
			a.logger.Warn("failed to journal suggestion", zap.Error(err))
		}
	}

	return suggestion
}

func (a *Advisor) suggest(ctx context.Context, balance, price decimal.Decimal) domain.TradingSuggestion {
	prompt := a.promptBuilder.BuildUserPrompt(promptbuilder.PortfolioContext{
		Balance: balance,
		Price:   price,
	})

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.breaker.Execute(func() (interface{}, error) {
		return a.llm.Complete(ctx, prompt)
	})
	if err != nil {
		a.logger.Error("error getting AI trading suggestion", zap.Error(err))
		return domain.HoldSuggestion(fmt.Sprintf("Unable to get AI suggestion: %v", err))
	}

	raw := out.(string)
	a.logger.Debug("AI suggestion received", zap.String("response", raw))

	suggestion, err := domain.ParseSuggestion(raw, balance)
	if err != nil {
		a.logger.Error("error parsing AI suggestion", zap.Error(err))
		return domain.HoldSuggestion(fmt.Sprintf("Error parsing AI suggestion: %v", err))
	}

	return suggestion
}
