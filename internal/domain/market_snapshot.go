package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot market data fetched once and used by every step of a single request.
type MarketSnapshot struct {
	// Price USD per ETH.
	Price decimal.Decimal
	// GasPriceGwei network fee rate.
	GasPriceGwei decimal.Decimal
	// PriceFallback is set when Price is the fallback constant.
	PriceFallback bool
	// GasFallback is set when GasPriceGwei is the fallback constant.
	GasFallback bool
	// FetchedAt time the snapshot was assembled.
	FetchedAt time.Time
}

// ToFiat converts an ETH amount to USD at the snapshot price.
func (s MarketSnapshot) ToFiat(eth decimal.Decimal) decimal.Decimal {
	return eth.Mul(s.Price)
}

// ToCrypto converts a USD amount to ETH at the snapshot price.
func (s MarketSnapshot) ToCrypto(fiat decimal.Decimal) decimal.Decimal {
	if !s.Price.IsPositive() {
		return decimal.Zero
	}
	return fiat.Div(s.Price)
}
