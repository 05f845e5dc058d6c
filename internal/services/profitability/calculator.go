// Package profitability prices an on-chain transfer and derives the smallest
// card transaction worth paying that fee for.
package profitability

import (
	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"
)

// GasLimit gas used by a plain ETH transfer.
const GasLimit = 21000

var (
	DefaultMinimumProfitableUSD = decimal.NewFromInt(50)
	DefaultProfitMargin         = decimal.RequireFromString("1.05")
	DefaultFallbackCost         = decimal.RequireFromString("5.0")
)

var (
	weiPerGwei  = decimal.NewFromInt(params.GWei)
	weiPerEther = decimal.NewFromInt(params.Ether)
)

// Policy profitability constants.
type Policy struct {
	MinimumProfitableUSD decimal.Decimal
	ProfitMargin         decimal.Decimal
	FallbackCost         decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		MinimumProfitableUSD: DefaultMinimumProfitableUSD,
		ProfitMargin:         DefaultProfitMargin,
		FallbackCost:         DefaultFallbackCost,
	}
}

type Calculator struct {
	policy Policy
}

func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy}
}

func (c *Calculator) Policy() Policy {
	return c.policy
}

// TransactionCost USD fee of one transfer: gas price (gwei) × gas limit, converted to ETH, times price.
// Non-positive inputs yield the fallback cost.
func (c *Calculator) TransactionCost(gasPriceGwei, price decimal.Decimal) decimal.Decimal {
	if !gasPriceGwei.IsPositive() || !price.IsPositive() {
		return c.policy.FallbackCost
	}

	wei := gasPriceGwei.Mul(weiPerGwei).Mul(decimal.NewFromInt(GasLimit))
	return wei.Div(weiPerEther).Mul(price)
}

// MinimumProfitableAmount max(floor, cost × margin) rounded up to cents.
func (c *Calculator) MinimumProfitableAmount(gasPriceGwei, price decimal.Decimal) decimal.Decimal {
	if !gasPriceGwei.IsPositive() || !price.IsPositive() {
		return c.policy.MinimumProfitableUSD
	}

	cost := c.TransactionCost(gasPriceGwei, price)
	return decimal.Max(c.policy.MinimumProfitableUSD, cost.Mul(c.policy.ProfitMargin)).RoundCeil(2)
}
