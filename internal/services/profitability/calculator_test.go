package profitability

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransactionCost(t *testing.T) {
	c := NewCalculator(DefaultPolicy())

	tests := []struct {
		name     string
		gas      string
		price    string
		expected string
	}{
		{name: "typical", gas: "50", price: "2000", expected: "2.1"},
		{name: "expensive gas", gas: "1000", price: "2500", expected: "52.5"},
		{name: "fractional gas", gas: "0.5", price: "3000", expected: "0.0315"},
		{name: "zero gas falls back", gas: "0", price: "2000", expected: "5"},
		{name: "negative price falls back", gas: "50", price: "-1", expected: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.TransactionCost(d(tt.gas), d(tt.price))
			assert.True(t, d(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestMinimumProfitableAmount(t *testing.T) {
	c := NewCalculator(DefaultPolicy())

	tests := []struct {
		name     string
		gas      string
		price    string
		expected string
	}{
		{name: "floor applies", gas: "50", price: "2000", expected: "50"},
		{name: "cost dominates", gas: "1000", price: "2500", expected: "55.13"},
		{name: "rounds up to the cent", gas: "1000", price: "2721.27", expected: "60.01"},
		{name: "invalid inputs", gas: "0", price: "0", expected: "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.MinimumProfitableAmount(d(tt.gas), d(tt.price))
			assert.True(t, d(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestMinimumProfitableAmount_Bounds(t *testing.T) {
	c := NewCalculator(DefaultPolicy())
	for _, price := range []string{"1", "150.5", "2000", "2721.27", "4321.99", "100000"} {
		for _, gas := range []string{"0.1", "5", "50", "333.3", "1000", "5000"} {
			minimum := c.MinimumProfitableAmount(d(gas), d(price))
			cost := c.TransactionCost(d(gas), d(price))

			assert.True(t, minimum.GreaterThanOrEqual(DefaultMinimumProfitableUSD),
				"price %s gas %s: %s below floor", price, gas, minimum)
			assert.True(t, minimum.GreaterThanOrEqual(cost.Mul(DefaultProfitMargin)),
				"price %s gas %s: %s below cost %s with margin", price, gas, minimum, cost)
			assert.True(t, minimum.Equal(minimum.Round(2)))
		}
	}
}
