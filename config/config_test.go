package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

func noEnvFile(t *testing.T) string {
	return "--env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, PriceSourceChainlink, cfg.PriceSource)
	assert.Equal(t, domain.Pair{From: "ETH", To: "USDT"}, cfg.Pair)
	assert.Equal(t, DefaultPriceFeedAddress, cfg.PriceFeedAddress)
	assert.Equal(t, 5*time.Second, cfg.OracleTimeout)
	assert.Equal(t, 20*time.Second, cfg.AdvisorTimeout)
	assert.True(t, cfg.CardSeed.Equal(decimal.NewFromInt(200)))
	assert.True(t, cfg.WalletSeed.Equal(decimal.RequireFromString("0.2")))
	assert.True(t, cfg.MinThreshold.Equal(decimal.NewFromInt(100)))
	assert.True(t, cfg.TargetBalance.Equal(decimal.NewFromInt(200)))
	assert.True(t, cfg.ProfitMargin.Equal(decimal.RequireFromString("1.05")))
	assert.True(t, cfg.FallbackPrice.Equal(decimal.NewFromInt(2000)))
	assert.True(t, cfg.FallbackGasGwei.Equal(decimal.NewFromInt(50)))
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{noEnvFile(t), "--pricesource=Bybit", "--pair=eth_usdc", "--cardseed=150", "--oracletimeout=2s"})
	require.NoError(t, err)

	assert.Equal(t, PriceSourceBybit, cfg.PriceSource)
	assert.Equal(t, domain.Pair{From: "ETH", To: "USDC"}, cfg.Pair)
	assert.True(t, cfg.CardSeed.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, 2*time.Second, cfg.OracleTimeout)
	assert.Empty(t, cfg.TLSDomains)
}

func TestLoad_TLSDomains(t *testing.T) {
	cfg, err := Load([]string{noEnvFile(t), "--tlsdomains= card.example.com, ,api.example.com", "--certcache=/tmp/certs"})
	require.NoError(t, err)

	assert.Equal(t, []string{"card.example.com", "api.example.com"}, cfg.TLSDomains)
	assert.Equal(t, "/tmp/certs", cfg.CertCacheDir)
}

func TestLoad_Yaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
addr: ":9000"
price_source: binance
oracle_timeout: 3s
policy:
  card_seed: "120.50"
  profit_margin: "1.10"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load([]string{noEnvFile(t), "--config=" + path})
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, PriceSourceBinance, cfg.PriceSource)
	assert.Equal(t, 3*time.Second, cfg.OracleTimeout)
	assert.True(t, cfg.CardSeed.Equal(decimal.RequireFromString("120.50")))
	assert.True(t, cfg.ProfitMargin.Equal(decimal.RequireFromString("1.10")))
	// keys absent from the file keep their defaults
	assert.True(t, cfg.WalletSeed.Equal(decimal.RequireFromString("0.2")))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLLMAPIKey, "secret")
	t.Setenv(EnvRPCURL, "https://mainnet.example/v3/key")
	t.Setenv(EnvAddr, ":7000")

	cfg, err := Load([]string{noEnvFile(t), "--addr=:9000"})
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.LLMAPIKey)
	assert.Equal(t, "https://mainnet.example/v3/key", cfg.RPCURL)
	assert.Equal(t, ":7000", cfg.Addr)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LLM_MODEL=mistral-large\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv(EnvLLMModel) })

	cfg, err := Load([]string{"--env-file=" + path})
	require.NoError(t, err)
	assert.Equal(t, "mistral-large", cfg.LLMModel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad pair", args: []string{"--pair=ETHUSDT"}},
		{name: "unknown price source", args: []string{"--pricesource=kraken"}},
		{name: "bad decimal", args: []string{"--cardseed=lots"}},
		{name: "negative seed", args: []string{"--walletseed=-1"}},
		{name: "zero timeout", args: []string{"--advisortimeout=0s"}},
		{name: "unknown flag", args: []string{"--nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(append(tt.args, noEnvFile(t)))
			assert.Error(t, err)
		})
	}
}

func TestValidate_Policy(t *testing.T) {
	cfg, err := Load([]string{noEnvFile(t)})
	require.NoError(t, err)

	bad := cfg
	bad.TargetBalance = decimal.NewFromInt(50)
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ProfitMargin = decimal.NewFromInt(1)
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.PriceFeedAddress = ""
	assert.Error(t, bad.Validate())
}
