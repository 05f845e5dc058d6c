// Package promptbuilder renders the portfolio prompt sent to the advisory model.
package promptbuilder

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

// ReplyFormat the three lines the advisor parser understands.
const ReplyFormat = `ACTION: [BUY/SELL/HOLD]
AMOUNT: [number] ETH
REASON: [your analysis]`

type PromptBuilder struct {
	pair   domain.Pair
	logger *zap.Logger
}

func NewPromptBuilder(pair domain.Pair, logger *zap.Logger) *PromptBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptBuilder{
		pair:   pair,
		logger: logger,
	}
}

// PortfolioContext inputs of one advisory request.
type PortfolioContext struct {
	// Balance wallet balance in the base asset.
	Balance decimal.Decimal
	// Price quote per base unit.
	Price decimal.Decimal
}

// TotalValue balance valued at price.
func (c PortfolioContext) TotalValue() decimal.Decimal {
	return c.Balance.Mul(c.Price)
}

func (pb *PromptBuilder) BuildUserPrompt(ctx PortfolioContext) string {
	var sb strings.Builder

	sb.WriteString("As a crypto trading expert, analyze the following portfolio and market conditions:\n\n")

	sb.WriteString("Portfolio Status:\n")
	sb.WriteString(fmt.Sprintf("- Current %s Balance: %s %s\n", pb.pair.From, ctx.Balance.StringFixed(4), pb.pair.From))
	sb.WriteString(fmt.Sprintf("- Current %s Price: $%s\n", pb.pair.From, ctx.Price.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("- Total Portfolio Value: $%s\n\n", ctx.TotalValue().StringFixed(2)))

	sb.WriteString("Based on current market conditions, provide a trading recommendation in this exact format:\n")
	sb.WriteString(ReplyFormat)

	prompt := sb.String()
	pb.logger.Debug("advisory prompt built", zap.Int("length", len(prompt)))

	return prompt
}
