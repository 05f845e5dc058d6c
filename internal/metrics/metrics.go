// Package metrics exposes prometheus collectors for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "cardfuel"

// Collectors holds every metric the service reports. A nil *Collectors is valid and records nothing.
type Collectors struct {
	registry *prometheus.Registry

	transactions *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	suggestions  *prometheus.CounterVec
	cardBalance  prometheus.Gauge
	walletBal    prometheus.Gauge
}

// New registers the collectors on a dedicated registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collectors{
		registry: reg,
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Card transactions and top-ups by outcome",
		}, []string{"kind", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_fallback_total",
			Help:      "Market data reads answered with a fallback value",
		}, []string{"source"}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "Advisory suggestions by action",
		}, []string{"action"}),
		cardBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "card_balance_usd",
			Help:      "Current card balance",
		}),
		walletBal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_balance_eth",
			Help:      "Current wallet balance",
		}),
	}

	reg.MustRegister(c.transactions, c.fallbacks, c.suggestions, c.cardBalance, c.walletBal)

	return c
}

func (c *Collectors) IncTransaction(kind, outcome string) {
	if c == nil {
		return
	}
	c.transactions.WithLabelValues(kind, outcome).Inc()
}

func (c *Collectors) IncFallback(source string) {
	if c == nil {
		return
	}
	c.fallbacks.WithLabelValues(source).Inc()
}

func (c *Collectors) IncSuggestion(action string) {
	if c == nil {
		return
	}
	c.suggestions.WithLabelValues(action).Inc()
}

// SetBalances implements the ledger's balance gauge.
func (c *Collectors) SetBalances(card, wallet decimal.Decimal) {
	if c == nil {
		return
	}
	c.cardBalance.Set(card.InexactFloat64())
	c.walletBal.Set(wallet.InexactFloat64())
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the prometheus text format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
