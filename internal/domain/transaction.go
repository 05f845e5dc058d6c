package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TransactionRequest card withdrawal requested by a caller.
type TransactionRequest struct {
	// Amount requested amount, denominated in Currency.
	Amount decimal.Decimal
	// Currency USD or ETH. Empty means USD.
	Currency Currency
	// WalletAddress optional linked wallet address.
	WalletAddress string
}

// Normalize fills defaults and canonicalizes casing.
func (r TransactionRequest) Normalize() TransactionRequest {
	r.Currency = Currency(strings.ToUpper(strings.TrimSpace(string(r.Currency))))
	if r.Currency == "" {
		r.Currency = CurrencyUSD
	}
	r.WalletAddress = strings.TrimSpace(r.WalletAddress)
	return r
}

// Validate checks the request shape.
func (r TransactionRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ValidationError(ErrInvalidAmount, "Amount must be positive")
	}
	if !r.Currency.IsValid() {
		return ValidationError(ErrInvalidCurrency, "Currency must be ETH or USD")
	}
	if err := ValidateWalletAddress(r.WalletAddress); err != nil {
		return err
	}
	return nil
}

// ValidateWalletAddress accepts an empty address or a 0x-prefixed 20-byte hex address.
func ValidateWalletAddress(address string) error {
	if address == "" {
		return nil
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return ValidationError(ErrInvalidWalletAddress, "Wallet address must be 0x-prefixed")
	}
	if !common.IsHexAddress(address) {
		return ValidationError(ErrInvalidWalletAddress, "Wallet address must be a 20-byte hex address")
	}
	return nil
}

// ThresholdAction outcome of a threshold evaluation.
type ThresholdAction string

const (
	ThresholdTopUp ThresholdAction = "top-up"
	ThresholdSkip  ThresholdAction = "skip"
)

// ThresholdDecision whether the card needs replenishing and by how much.
type ThresholdDecision struct {
	Action ThresholdAction
	Amount decimal.Decimal
	Reason string
}

// SaleResult simulated sale of ETH that funds a top-up.
type SaleResult struct {
	EthSold     decimal.Decimal
	USDReceived decimal.Decimal
	TxHash      string
	Suggestion  TradingSuggestion
}

// TopUpResult outcome of a sale followed by card funding.
type TopUpResult struct {
	AmountAdded decimal.Decimal
	EthSold     decimal.Decimal
	TxHash      string
	Suggestion  TradingSuggestion
	NewBalance  decimal.Decimal
	NewWallet   decimal.Decimal
}

// TransactionResult outcome of a card transaction. Built once, never mutated.
type TransactionResult struct {
	Status              string
	Amount              decimal.Decimal
	TxHash              string
	NewBalance          decimal.Decimal
	NewWalletBalanceUSD decimal.Decimal
	NewWalletBalance    decimal.Decimal
	MinProfitableAmount decimal.Decimal
	// TopUp is set when the withdrawal triggered a replenishment.
	TopUp *TopUpResult
}

// StatusReport read-only view of balances, market data and advice.
type StatusReport struct {
	CardBalance         decimal.Decimal
	WalletBalance       decimal.Decimal
	Price               decimal.Decimal
	GasPriceGwei        decimal.Decimal
	MinProfitableAmount decimal.Decimal
	WalletBalanceUSD    decimal.Decimal
	Suggestion          TradingSuggestion
	Decision            ThresholdDecision
}
