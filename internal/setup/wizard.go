// Package setup is the interactive first-run wizard. It writes a yaml config and
// keeps secrets in a dotenv file next to it.
package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/cardfuel/config"
	"github.com/vadiminshakov/cardfuel/internal/domain"
)

const title = "CARDFUEL SETUP"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers raw wizard input. Numbers stay strings until Config parses them.
type Answers struct {
	PriceSource   string
	Pair          string
	RPCURL        string
	LLMAPIURL     string
	LLMModel      string
	LLMAPIKey     string
	CardSeed      string
	WalletSeed    string
	MinThreshold  string
	TargetBalance string
}

// DefaultAnswers prefills the form from the built-in configuration.
func DefaultAnswers() Answers {
	d := config.Defaults()
	return Answers{
		PriceSource:   d.PriceSource,
		Pair:          d.Pair,
		LLMAPIURL:     d.LLMAPIURL,
		LLMModel:      d.LLMModel,
		CardSeed:      d.Policy.CardSeed,
		WalletSeed:    d.Policy.WalletSeed,
		MinThreshold:  d.Policy.MinThreshold,
		TargetBalance: d.Policy.TargetBalance,
	}
}

// Config turns the answers into a yaml-ready config and checks it the same way
// the service will on startup. Secrets are not part of the result.
func (a Answers) Config() (config.ConfigTmp, error) {
	tmp := config.Defaults()
	tmp.PriceSource = strings.ToLower(strings.TrimSpace(a.PriceSource))
	tmp.Pair = strings.ToUpper(strings.TrimSpace(a.Pair))
	tmp.LLMAPIURL = strings.TrimSpace(a.LLMAPIURL)
	tmp.LLMModel = strings.TrimSpace(a.LLMModel)
	tmp.Policy.CardSeed = strings.TrimSpace(a.CardSeed)
	tmp.Policy.WalletSeed = strings.TrimSpace(a.WalletSeed)
	tmp.Policy.MinThreshold = strings.TrimSpace(a.MinThreshold)
	tmp.Policy.TargetBalance = strings.TrimSpace(a.TargetBalance)

	cfg, err := tmp.Build()
	if err != nil {
		return config.ConfigTmp{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.ConfigTmp{}, err
	}

	return tmp, nil
}

// Secrets values that belong in the dotenv file. Empty answers are left out.
func (a Answers) Secrets() map[string]string {
	secrets := make(map[string]string)
	if v := strings.TrimSpace(a.RPCURL); v != "" {
		secrets[config.EnvRPCURL] = v
	}
	if v := strings.TrimSpace(a.LLMAPIKey); v != "" {
		secrets[config.EnvLLMAPIKey] = v
	}
	return secrets
}

// Save writes the yaml config and merges the secrets into envPath, keeping any
// other variables already there.
func Save(a Answers, configPath, envPath string) error {
	tmp, err := a.Config()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}

	secrets := a.Secrets()
	if len(secrets) == 0 {
		return nil
	}

	env, err := godotenv.Read(envPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "failed to read %s", envPath)
		}
		env = make(map[string]string)
	}
	for k, v := range secrets {
		env[k] = v
	}

	if err := godotenv.Write(env, envPath); err != nil {
		return errors.Wrapf(err, "failed to write %s", envPath)
	}
	return os.Chmod(envPath, 0o600)
}

// Run launches the terminal wizard and saves the result.
func Run(configPath, envPath string) error {
	a := DefaultAnswers()

	screen("STEP 1: PRICE SOURCE")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Where the ETH price comes from.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Price source").
				Options(
					huh.NewOption("Chainlink ETH/USD feed (needs RPC node)", config.PriceSourceChainlink),
					huh.NewOption("Binance spot ticker", config.PriceSourceBinance),
					huh.NewOption("Bybit spot ticker", config.PriceSourceBybit),
					huh.NewOption("Hyperliquid mid price", config.PriceSourceHyperliquid),
				).
				Value(&a.PriceSource),
			huh.NewInput().
				Title("Exchange pair").
				Description("BASE_QUOTE, used by the exchange tickers (e.g. ETH_USDT)").
				Value(&a.Pair).
				Validate(validatePair),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: ETHEREUM NODE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("RPC URL").
				Description("Gas price and Chainlink reads. Leave empty to run on fallbacks").
				Value(&a.RPCURL),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 3: ADVISOR")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("LLM API URL").
				Value(&a.LLMAPIURL),
			huh.NewInput().
				Title("LLM API Key").
				Description("Without a key the advisor always holds").
				Value(&a.LLMAPIKey).
				EchoMode(huh.EchoModePassword),
			huh.NewInput().
				Title("Model Name").
				Value(&a.LLMModel),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 4: BALANCES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Card balance, USD").
				Value(&a.CardSeed).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Wallet balance, ETH").
				Value(&a.WalletSeed).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Top-up threshold, USD").
				Description("A card balance below this triggers a top-up").
				Value(&a.MinThreshold).
				Validate(validatePositive),
			huh.NewInput().
				Title("Target balance, USD").
				Description("A top-up refills the card to at least this").
				Value(&a.TargetBalance).
				Validate(validatePositive),
		),
	).Run()
	if err != nil {
		return err
	}

	if _, err := a.Config(); err != nil {
		return err
	}

	screen("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary(a)))

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	if err := Save(a, configPath, envPath); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\nConfiguration saved to %s\nStart with: cardfuel --config %s", configPath, configPath)))
	return nil
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(stepStyle.Render(step))
}

func summary(a Answers) string {
	rpc := "not set (fallbacks)"
	if a.RPCURL != "" {
		rpc = "set"
	}
	key := "not set (always hold)"
	if a.LLMAPIKey != "" {
		key = "set"
	}
	return fmt.Sprintf(
		"Price source: %s\nPair: %s\nRPC: %s\nLLM key: %s\nCard: $%s  Wallet: %s ETH\nThreshold: $%s  Target: $%s\n",
		a.PriceSource, a.Pair, rpc, key, a.CardSeed, a.WalletSeed, a.MinThreshold, a.TargetBalance,
	)
}

func validatePair(s string) error {
	_, err := domain.ParsePair(strings.TrimSpace(s))
	return err
}

func validateNonNegative(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a valid number")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a valid number")
	}
	if !d.IsPositive() {
		return errors.New("must be positive")
	}
	return nil
}
