// Package marketdata reads the ETH price and the network gas price, falling back on
// fixed values whenever an upstream source fails.
package marketdata

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cardfuel/internal/clients"
	"github.com/vadiminshakov/cardfuel/internal/domain"
	"github.com/vadiminshakov/cardfuel/internal/services/pricer"
)

const (
	sourcePrice = "price"
	sourceGas   = "gas"
)

var (
	// DefaultFallbackPrice USD per ETH used when the price source fails.
	DefaultFallbackPrice = decimal.NewFromInt(2000)
	// DefaultFallbackGasGwei gas price used when the node fails.
	DefaultFallbackGasGwei = decimal.NewFromInt(50)
	// DefaultTimeout bound on a single upstream call.
	DefaultTimeout = 5 * time.Second
)

var gwei = decimal.NewFromInt(params.GWei)

// GasOracle suggests the current gas price in wei.
type GasOracle interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

type fallbackCounter interface {
	IncFallback(source string)
}

type noopCounter struct{}

func (noopCounter) IncFallback(string) {}

// Config adapter settings. Zero values take the defaults.
type Config struct {
	Pair            domain.Pair
	Timeout         time.Duration
	FallbackPrice   decimal.Decimal
	FallbackGasGwei decimal.Decimal
}

// Adapter never returns an error: every failure, timeout or open breaker yields the fallback.
type Adapter struct {
	pricer       pricer.Pricer
	gas          GasOracle
	cfg          Config
	priceBreaker *gobreaker.CircuitBreaker
	gasBreaker   *gobreaker.CircuitBreaker
	fallbacks    fallbackCounter
	logger       *zap.Logger
	now          func() time.Time
}

func NewAdapter(p pricer.Pricer, gas GasOracle, cfg Config, fallbacks fallbackCounter, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallbacks == nil {
		fallbacks = noopCounter{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if !cfg.FallbackPrice.IsPositive() {
		cfg.FallbackPrice = DefaultFallbackPrice
	}
	if !cfg.FallbackGasGwei.IsPositive() {
		cfg.FallbackGasGwei = DefaultFallbackGasGwei
	}
	if cfg.Pair.From == "" {
		cfg.Pair = domain.Pair{From: "ETH", To: "USD"}
	}

	logger = logger.With(zap.String("component", "marketdata"))

	return &Adapter{
		pricer:       p,
		gas:          gas,
		cfg:          cfg,
		priceBreaker: clients.NewBreaker("price-oracle", logger),
		gasBreaker:   clients.NewBreaker("gas-oracle", logger),
		fallbacks:    fallbacks,
		logger:       logger,
		now:          time.Now,
	}
}

// Price returns USD per ETH, or the fallback price when the oracle fails.
// It is an independent fetch; callers that need price and gas from the same
// moment use Snapshot, which is what the card flows do.
func (a *Adapter) Price(ctx context.Context) decimal.Decimal {
	price, _ := a.price(ctx)
	return price
}

// GasPriceGwei returns the current gas price in gwei, or the fallback gas price.
// Like Price it fetches on every call and shares nothing with Snapshot.
func (a *Adapter) GasPriceGwei(ctx context.Context) decimal.Decimal {
	gas, _ := a.gasPriceGwei(ctx)
	return gas
}

// Snapshot fetches price and gas once, concurrently.
func (a *Adapter) Snapshot(ctx context.Context) domain.MarketSnapshot {
	var (
		wg       sync.WaitGroup
		snapshot domain.MarketSnapshot
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		snapshot.Price, snapshot.PriceFallback = a.price(ctx)
	}()
	go func() {
		defer wg.Done()
		snapshot.GasPriceGwei, snapshot.GasFallback = a.gasPriceGwei(ctx)
	}()
	wg.Wait()

	snapshot.FetchedAt = a.now()
	return snapshot
}

func (a *Adapter) price(ctx context.Context) (decimal.Decimal, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	out, err := a.priceBreaker.Execute(func() (interface{}, error) {
		price, err := await(ctx, func(ctx context.Context) (decimal.Decimal, error) {
			return a.pricer.GetPrice(ctx, a.cfg.Pair)
		})
		if err != nil {
			return nil, err
		}
		if !price.IsPositive() {
			return nil, errors.Errorf("non-positive price %s", price.String())
		}
		return price, nil
	})
	if err != nil {
		a.logger.Warn("price source failed, using fallback",
			zap.String("fallback", a.cfg.FallbackPrice.String()),
			zap.Error(err))
		a.fallbacks.IncFallback(sourcePrice)
		return a.cfg.FallbackPrice, true
	}

	return out.(decimal.Decimal), false
}

func (a *Adapter) gasPriceGwei(ctx context.Context) (decimal.Decimal, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	out, err := a.gasBreaker.Execute(func() (interface{}, error) {
		wei, err := await(ctx, a.gas.SuggestGasPrice)
		if err != nil {
			return nil, err
		}
		if wei == nil || wei.Sign() < 0 {
			return nil, errors.New("invalid gas price")
		}
		return decimal.NewFromBigInt(wei, 0).Div(gwei), nil
	})
	if err != nil {
		a.logger.Warn("gas oracle failed, using fallback",
			zap.String("fallback_gwei", a.cfg.FallbackGasGwei.String()),
			zap.Error(err))
		a.fallbacks.IncFallback(sourceGas)
		return a.cfg.FallbackGasGwei, true
	}

	return out.(decimal.Decimal), false
}

// await bounds fn by ctx even when fn itself ignores the context.
func await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{value: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrap(ctx.Err(), "upstream call timed out")
	}
}
