// Command cardfuel serves the card top-up API. A card withdrawal that drops the
// card below its threshold sells ETH from the linked wallet to refill it.
//
// Usage:
//
//	cardfuel --config config.yaml
//	cardfuel --addr :8000 --pricesource binance
//	cardfuel setup --config config.yaml (interactive wizard)
//
// Environment variables (a .env file is read if present):
//
//	INFURA_URL          Ethereum JSON-RPC endpoint for gas price and the Chainlink feed
//	MISTRAL_API_KEY     key for the advisory LLM endpoint
//	PRICE_FEED_ADDRESS  Chainlink aggregator address
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cardfuel/config"
	"github.com/vadiminshakov/cardfuel/internal/clients"
	"github.com/vadiminshakov/cardfuel/internal/events"
	"github.com/vadiminshakov/cardfuel/internal/metrics"
	"github.com/vadiminshakov/cardfuel/internal/services/advisor"
	"github.com/vadiminshakov/cardfuel/internal/services/ledger"
	"github.com/vadiminshakov/cardfuel/internal/services/marketdata"
	"github.com/vadiminshakov/cardfuel/internal/services/pricer"
	"github.com/vadiminshakov/cardfuel/internal/services/profitability"
	"github.com/vadiminshakov/cardfuel/internal/services/promptbuilder"
	"github.com/vadiminshakov/cardfuel/internal/services/replenish"
	"github.com/vadiminshakov/cardfuel/internal/setup"
	"github.com/vadiminshakov/cardfuel/internal/storage/journal"
	"github.com/vadiminshakov/cardfuel/internal/web"
)

const balanceStreamBuffer = 64

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := runSetup(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("cardfuel stopped", zap.Error(err))
	}
	logger.Info("cardfuel stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	collectors := metrics.New()
	broadcaster := events.NewBalanceBroadcaster(balanceStreamBuffer)

	store, err := journal.NewWALStore(cfg.JournalDir)
	if err != nil {
		return errors.Wrap(err, "failed to open journal")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close journal", zap.Error(err))
		}
	}()

	chain := newChainClient(ctx, cfg, logger)

	p, err := newPricer(cfg, chain)
	if err != nil {
		return err
	}

	market := marketdata.NewAdapter(p, chain, marketdata.Config{
		Pair:            cfg.Pair,
		Timeout:         cfg.OracleTimeout,
		FallbackPrice:   cfg.FallbackPrice,
		FallbackGasGwei: cfg.FallbackGasGwei,
	}, collectors, logger)

	calc := profitability.NewCalculator(profitability.Policy{
		MinimumProfitableUSD: cfg.MinimumProfitableUSD,
		ProfitMargin:         cfg.ProfitMargin,
		FallbackCost:         cfg.FallbackCost,
	})

	balances, err := ledger.New(cfg.CardSeed, cfg.WalletSeed, ledger.Policy{
		MinThreshold:  cfg.MinThreshold,
		TargetBalance: cfg.TargetBalance,
	}, logger, ledger.WithPublisher(broadcaster), ledger.WithGauge(collectors))
	if err != nil {
		return errors.Wrap(err, "failed to create ledger")
	}

	if cfg.LLMAPIKey == "" {
		logger.Warn("LLM API key is not set, advisor will always hold")
	}
	adv := advisor.New(
		clients.NewOpenAICompatibleClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel),
		promptbuilder.NewPromptBuilder(cfg.Pair, logger),
		logger,
		advisor.WithJournal(store),
		advisor.WithCounter(collectors),
		advisor.WithTimeout(cfg.AdvisorTimeout),
	)

	svc := replenish.NewService(market, calc, balances, adv, logger,
		replenish.WithJournal(store),
		replenish.WithCounter(collectors),
	)

	logger.Info("cardfuel started",
		zap.String("addr", cfg.Addr),
		zap.String("pair", cfg.Pair.String()),
		zap.String("price_source", cfg.PriceSource),
		zap.String("card", cfg.CardSeed.StringFixed(2)),
		zap.String("wallet", cfg.WalletSeed.String()))

	server := web.NewServer(cfg.Addr, svc, broadcaster, store, collectors.Handler(), logger)
	if len(cfg.TLSDomains) > 0 {
		return server.StartWithAutoTLS(ctx, cfg.TLSDomains, cfg.CertCacheDir)
	}
	return server.Start(ctx)
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "where to write the yaml config")
	envFile := fs.String("env-file", ".env", "where to write secrets")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return setup.Run(*configPath, *envFile)
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = atomicLevel
	return zapCfg.Build()
}

// newChainClient dials the RPC node. Without one every chain call fails and the
// market adapter serves fallback values.
func newChainClient(ctx context.Context, cfg config.Config, logger *zap.Logger) clients.ChainClient {
	if cfg.RPCURL == "" {
		logger.Warn("RPC URL is not set, gas price and chainlink feed use fallbacks")
		return clients.UnavailableChain{Reason: "rpc url is not configured"}
	}

	chain, err := clients.NewEthClient(ctx, cfg.RPCURL)
	if err != nil {
		logger.Error("failed to dial RPC node, using fallbacks", zap.Error(err))
		return clients.UnavailableChain{Reason: err.Error()}
	}
	return chain
}

func newPricer(cfg config.Config, chain clients.ChainClient) (pricer.Pricer, error) {
	switch cfg.PriceSource {
	case config.PriceSourceChainlink:
		p, err := pricer.NewChainlinkPricer(chain, cfg.PriceFeedAddress)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create chainlink pricer")
		}
		return p, nil
	case config.PriceSourceBinance:
		return pricer.NewBinancePricer(clients.NewBinanceClient()), nil
	case config.PriceSourceBybit:
		return pricer.NewBybitPricer(clients.NewBybitClient()), nil
	case config.PriceSourceHyperliquid:
		info, err := clients.NewHyperliquidInfo(cfg.HyperliquidURL)
		if err != nil {
			return nil, err
		}
		return pricer.NewHyperliquidPricer(info), nil
	default:
		return nil, errors.Errorf("unsupported price source %q", cfg.PriceSource)
	}
}
