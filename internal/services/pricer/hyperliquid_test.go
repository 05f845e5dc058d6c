package pricer

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

type fakeMids struct {
	mids map[string]string
	err  error
}

func (f fakeMids) AllMids(context.Context) (map[string]string, error) {
	return f.mids, f.err
}

func TestHyperliquidPricer(t *testing.T) {
	pair := domain.Pair{From: "ETH", To: "USDC"}

	p := NewHyperliquidPricer(fakeMids{mids: map[string]string{"BTC": "60000", "ETH": "2501.5"}})
	price, err := p.GetPrice(context.Background(), pair)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("2501.5")))

	_, err = NewHyperliquidPricer(fakeMids{mids: map[string]string{"BTC": "60000"}}).GetPrice(context.Background(), pair)
	assert.Error(t, err)

	_, err = NewHyperliquidPricer(fakeMids{err: errors.New("down")}).GetPrice(context.Background(), pair)
	assert.Error(t, err)

	_, err = NewHyperliquidPricer(nil).GetPrice(context.Background(), pair)
	assert.Error(t, err)
}
