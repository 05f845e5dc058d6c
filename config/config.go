package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

// Price sources.
const (
	PriceSourceChainlink   = "chainlink"
	PriceSourceBinance     = "binance"
	PriceSourceBybit       = "bybit"
	PriceSourceHyperliquid = "hyperliquid"
)

// Environment variables. They override the file and the flags.
const (
	EnvAddr             = "CARDFUEL_ADDR"
	EnvRPCURL           = "INFURA_URL"
	EnvPriceFeedAddress = "PRICE_FEED_ADDRESS"
	EnvLLMAPIKey        = "MISTRAL_API_KEY"
	EnvLLMAPIURL        = "LLM_API_URL"
	EnvLLMModel         = "LLM_MODEL"
)

// DefaultPriceFeedAddress Chainlink ETH/USD aggregator on mainnet.
const DefaultPriceFeedAddress = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"

type Config struct {
	Addr     string
	LogLevel string

	PriceSource      string
	Pair             domain.Pair
	RPCURL           string
	PriceFeedAddress string
	HyperliquidURL   string
	OracleTimeout    time.Duration
	FallbackPrice    decimal.Decimal
	FallbackGasGwei  decimal.Decimal

	LLMAPIURL      string
	LLMAPIKey      string
	LLMModel       string
	AdvisorTimeout time.Duration

	CardSeed             decimal.Decimal
	WalletSeed           decimal.Decimal
	MinThreshold         decimal.Decimal
	TargetBalance        decimal.Decimal
	MinimumProfitableUSD decimal.Decimal
	ProfitMargin         decimal.Decimal
	FallbackCost         decimal.Decimal

	JournalDir string

	// TLSDomains enables ACME certificates for these hosts when set.
	TLSDomains   []string
	CertCacheDir string
}

// ConfigTmp raw form of Config as read from yaml or flags. Decimals are strings.
type ConfigTmp struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	PriceSource      string        `yaml:"price_source"`
	Pair             string        `yaml:"pair"`
	RPCURL           string        `yaml:"rpc_url"`
	PriceFeedAddress string        `yaml:"price_feed_address"`
	HyperliquidURL   string        `yaml:"hyperliquid_url"`
	OracleTimeout    time.Duration `yaml:"oracle_timeout"`
	FallbackPrice    string        `yaml:"fallback_price"`
	FallbackGasGwei  string        `yaml:"fallback_gas_gwei"`

	LLMAPIURL      string        `yaml:"llm_api_url"`
	LLMModel       string        `yaml:"llm_model"`
	AdvisorTimeout time.Duration `yaml:"advisor_timeout"`

	Policy PolicyTmp `yaml:"policy"`

	JournalDir string `yaml:"journal_dir"`

	TLSDomains   string `yaml:"tls_domains"`
	CertCacheDir string `yaml:"cert_cache_dir"`
}

type PolicyTmp struct {
	CardSeed             string `yaml:"card_seed"`
	WalletSeed           string `yaml:"wallet_seed"`
	MinThreshold         string `yaml:"min_threshold"`
	TargetBalance        string `yaml:"target_balance"`
	MinimumProfitableUSD string `yaml:"minimum_profitable_usd"`
	ProfitMargin         string `yaml:"profit_margin"`
	FallbackCost         string `yaml:"fallback_cost"`
}

// Defaults returns the built-in settings every other source is layered over.
func Defaults() ConfigTmp {
	return ConfigTmp{
		Addr:             ":8000",
		LogLevel:         "info",
		PriceSource:      PriceSourceChainlink,
		Pair:             "ETH_USDT",
		PriceFeedAddress: DefaultPriceFeedAddress,
		HyperliquidURL:   "https://api.hyperliquid.xyz",
		OracleTimeout:    5 * time.Second,
		FallbackPrice:    "2000",
		FallbackGasGwei:  "50",
		LLMAPIURL:        "https://api.mistral.ai/v1/chat/completions",
		LLMModel:         "mistral-small",
		AdvisorTimeout:   20 * time.Second,
		Policy: PolicyTmp{
			CardSeed:             "200.00",
			WalletSeed:           "0.2",
			MinThreshold:         "100",
			TargetBalance:        "200",
			MinimumProfitableUSD: "50",
			ProfitMargin:         "1.05",
			FallbackCost:         "5.0",
		},
		JournalDir:   "./wal/journal",
		CertCacheDir: "cert-cache",
	}
}

// Get reads the configuration from the process arguments and environment.
func Get() (Config, error) {
	return Load(os.Args[1:])
}

// Load reads --config yaml if given, otherwise the flags, then applies environment overrides.
func Load(args []string) (Config, error) {
	tmp := Defaults()

	fs := flag.NewFlagSet("cardfuel", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to yaml config")
	envFile := fs.String("env-file", ".env", "dotenv file with secrets, ignored if missing")
	fs.StringVar(&tmp.Addr, "addr", tmp.Addr, "http listen address")
	fs.StringVar(&tmp.LogLevel, "loglevel", tmp.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&tmp.PriceSource, "pricesource", tmp.PriceSource, "price source: chainlink, binance, bybit or hyperliquid")
	fs.StringVar(&tmp.Pair, "pair", tmp.Pair, "exchange pair for binance/bybit, example: ETH_USDT")
	fs.DurationVar(&tmp.OracleTimeout, "oracletimeout", tmp.OracleTimeout, "timeout of one price or gas read")
	fs.DurationVar(&tmp.AdvisorTimeout, "advisortimeout", tmp.AdvisorTimeout, "timeout of one advisory request")
	fs.StringVar(&tmp.Policy.CardSeed, "cardseed", tmp.Policy.CardSeed, "initial card balance, USD")
	fs.StringVar(&tmp.Policy.WalletSeed, "walletseed", tmp.Policy.WalletSeed, "initial wallet balance, ETH")
	fs.StringVar(&tmp.JournalDir, "journaldir", tmp.JournalDir, "journal WAL directory")
	fs.StringVar(&tmp.TLSDomains, "tlsdomains", tmp.TLSDomains, "comma-separated hosts for automatic TLS, empty serves plain HTTP")
	fs.StringVar(&tmp.CertCacheDir, "certcache", tmp.CertCacheDir, "ACME certificate cache directory")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		if err := readYaml(*configPath, &tmp); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrapf(err, "failed to load %s", *envFile)
	}

	cfg, err := tmp.Build()
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func readYaml(path string, tmp *ConfigTmp) error {
	f, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(f, tmp); err != nil {
		return errors.Wrapf(err, "incorrect yaml config %s", path)
	}
	return nil
}

// Build parses the raw settings. It does not validate them.
func (c ConfigTmp) Build() (Config, error) {
	pair, err := domain.ParsePair(c.Pair)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'pair' param: %s, error: %w", c.Pair, err)
	}

	cfg := Config{
		Addr:             c.Addr,
		LogLevel:         c.LogLevel,
		PriceSource:      strings.ToLower(strings.TrimSpace(c.PriceSource)),
		Pair:             pair,
		RPCURL:           c.RPCURL,
		PriceFeedAddress: c.PriceFeedAddress,
		HyperliquidURL:   c.HyperliquidURL,
		OracleTimeout:    c.OracleTimeout,
		LLMAPIURL:        c.LLMAPIURL,
		LLMModel:         c.LLMModel,
		AdvisorTimeout:   c.AdvisorTimeout,
		JournalDir:       c.JournalDir,
		TLSDomains:       splitList(c.TLSDomains),
		CertCacheDir:     c.CertCacheDir,
	}

	decimals := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"fallback_price", c.FallbackPrice, &cfg.FallbackPrice},
		{"fallback_gas_gwei", c.FallbackGasGwei, &cfg.FallbackGasGwei},
		{"card_seed", c.Policy.CardSeed, &cfg.CardSeed},
		{"wallet_seed", c.Policy.WalletSeed, &cfg.WalletSeed},
		{"min_threshold", c.Policy.MinThreshold, &cfg.MinThreshold},
		{"target_balance", c.Policy.TargetBalance, &cfg.TargetBalance},
		{"minimum_profitable_usd", c.Policy.MinimumProfitableUSD, &cfg.MinimumProfitableUSD},
		{"profit_margin", c.Policy.ProfitMargin, &cfg.ProfitMargin},
		{"fallback_cost", c.Policy.FallbackCost, &cfg.FallbackCost},
	}
	for _, d := range decimals {
		v, err := decimal.NewFromString(d.value)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param (must be a decimal): %q, error: %w", d.name, d.value, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{EnvAddr, &c.Addr},
		{EnvRPCURL, &c.RPCURL},
		{EnvPriceFeedAddress, &c.PriceFeedAddress},
		{EnvLLMAPIKey, &c.LLMAPIKey},
		{EnvLLMAPIURL, &c.LLMAPIURL},
		{EnvLLMModel, &c.LLMModel},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.dst = v
		}
	}
}

// Validate checks the policy invariants.
func (c Config) Validate() error {
	switch c.PriceSource {
	case PriceSourceChainlink, PriceSourceBinance, PriceSourceBybit, PriceSourceHyperliquid:
	default:
		return fmt.Errorf("unknown price source %q", c.PriceSource)
	}
	if c.CardSeed.IsNegative() {
		return fmt.Errorf("card seed must be non-negative, got %s", c.CardSeed)
	}
	if c.WalletSeed.IsNegative() {
		return fmt.Errorf("wallet seed must be non-negative, got %s", c.WalletSeed)
	}
	if !c.MinThreshold.IsPositive() {
		return fmt.Errorf("min threshold must be positive, got %s", c.MinThreshold)
	}
	if !c.TargetBalance.GreaterThan(c.MinThreshold) {
		return fmt.Errorf("target balance %s must exceed min threshold %s", c.TargetBalance, c.MinThreshold)
	}
	if !c.ProfitMargin.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("profit margin must be greater than 1, got %s", c.ProfitMargin)
	}
	if c.MinimumProfitableUSD.IsNegative() {
		return fmt.Errorf("minimum profitable amount must be non-negative, got %s", c.MinimumProfitableUSD)
	}
	if !c.FallbackPrice.IsPositive() || !c.FallbackGasGwei.IsPositive() || !c.FallbackCost.IsPositive() {
		return errors.New("fallback price, gas and cost must be positive")
	}
	if c.OracleTimeout <= 0 || c.AdvisorTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.PriceSource == PriceSourceChainlink && c.PriceFeedAddress == "" {
		return errors.New("chainlink price source needs a price feed address")
	}
	return nil
}
