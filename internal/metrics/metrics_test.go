package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	c := New()

	c.IncTransaction("transaction", "success")
	c.IncTransaction("transaction", "success")
	c.IncFallback("price")
	c.IncSuggestion("hold")
	c.SetBalances(decimal.RequireFromString("150.5"), decimal.RequireFromString("0.2"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transactions.WithLabelValues("transaction", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fallbacks.WithLabelValues("price")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.suggestions.WithLabelValues("hold")))
	assert.Equal(t, 150.5, testutil.ToFloat64(c.cardBalance))
	assert.Equal(t, 0.2, testutil.ToFloat64(c.walletBal))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cardfuel_market_fallback_total")
}

func TestCollectors_NilSafe(t *testing.T) {
	var c *Collectors

	assert.NotPanics(t, func() {
		c.IncTransaction("transaction", "failed")
		c.IncFallback("gas")
		c.IncSuggestion("buy")
		c.SetBalances(decimal.Zero, decimal.Zero)
	})
	assert.Nil(t, c.Registry())
}
