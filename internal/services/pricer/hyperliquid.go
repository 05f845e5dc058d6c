package pricer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

// MidsSource returns mid prices keyed by base coin (e.g. "ETH").
type MidsSource interface {
	AllMids(ctx context.Context) (map[string]string, error)
}

// HyperliquidPricer reads mid prices from the Hyperliquid public Info API.
type HyperliquidPricer struct {
	info MidsSource
}

func NewHyperliquidPricer(info MidsSource) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

func (p *HyperliquidPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if p.info == nil {
		return decimal.Zero, fmt.Errorf("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	mid, ok := mids[pair.From]
	if !ok || mid == "" {
		return decimal.Zero, fmt.Errorf("hyperliquid API returned empty mid price for %s", pair.From)
	}
	return decimal.NewFromString(mid)
}
