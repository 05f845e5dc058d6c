package web

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

// Wire types. Decimals go out as JSON numbers.

type useCardRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	WalletAddress string          `json:"wallet_address"`
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type partialFailureResponse struct {
	Detail     string  `json:"detail"`
	TxHash     string  `json:"tx_hash"`
	NewBalance float64 `json:"new_balance"`
}

type suggestionResponse struct {
	Action string  `json:"action"`
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

type decisionResponse struct {
	Action string  `json:"action"`
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

type statusResponse struct {
	CardBalance         float64            `json:"card_balance"`
	EthBalance          float64            `json:"eth_balance"`
	EthPrice            float64            `json:"eth_price"`
	GasPriceGwei        float64            `json:"gas_price_gwei"`
	MinProfitableAmount float64            `json:"min_profitable_amount"`
	MetamaskBalanceUSD  float64            `json:"metamask_balance_usd"`
	TradingSuggestion   suggestionResponse `json:"trading_suggestion"`
	Decision            decisionResponse   `json:"decision"`
}

type topUpResponse struct {
	Status        string             `json:"status"`
	AmountAdded   float64            `json:"amount_added"`
	EthSold       float64            `json:"eth_sold"`
	TxHash        string             `json:"tx_hash"`
	AISuggestion  suggestionResponse `json:"ai_suggestion"`
	NewBalance    float64            `json:"new_balance"`
	NewEthBalance float64            `json:"new_eth_balance"`
}

type useCardResponse struct {
	Status                string         `json:"status"`
	Amount                float64        `json:"amount"`
	TxHash                string         `json:"tx_hash"`
	NewBalance            float64        `json:"new_balance"`
	NewMetamaskBalanceUSD float64        `json:"new_metamask_balance_usd"`
	NewEthBalance         float64        `json:"new_eth_balance"`
	MinProfitableAmount   float64        `json:"min_profitable_amount"`
	TopUp                 *topUpResponse `json:"top_up,omitempty"`
}

func toSuggestionResponse(s domain.TradingSuggestion) suggestionResponse {
	return suggestionResponse{
		Action: s.Action.String(),
		Amount: s.Amount.InexactFloat64(),
		Reason: s.Reason,
	}
}

func toStatusResponse(r domain.StatusReport) statusResponse {
	return statusResponse{
		CardBalance:         r.CardBalance.InexactFloat64(),
		EthBalance:          r.WalletBalance.InexactFloat64(),
		EthPrice:            r.Price.InexactFloat64(),
		GasPriceGwei:        r.GasPriceGwei.InexactFloat64(),
		MinProfitableAmount: r.MinProfitableAmount.InexactFloat64(),
		MetamaskBalanceUSD:  r.WalletBalanceUSD.InexactFloat64(),
		TradingSuggestion:   toSuggestionResponse(r.Suggestion),
		Decision: decisionResponse{
			Action: string(r.Decision.Action),
			Amount: r.Decision.Amount.InexactFloat64(),
			Reason: r.Decision.Reason,
		},
	}
}

func toTopUpResponse(r domain.TopUpResult) topUpResponse {
	return topUpResponse{
		Status:        "success",
		AmountAdded:   r.AmountAdded.InexactFloat64(),
		EthSold:       r.EthSold.InexactFloat64(),
		TxHash:        r.TxHash,
		AISuggestion:  toSuggestionResponse(r.Suggestion),
		NewBalance:    r.NewBalance.InexactFloat64(),
		NewEthBalance: r.NewWallet.InexactFloat64(),
	}
}

func toUseCardResponse(r domain.TransactionResult) useCardResponse {
	resp := useCardResponse{
		Status:                r.Status,
		Amount:                r.Amount.InexactFloat64(),
		TxHash:                r.TxHash,
		NewBalance:            r.NewBalance.InexactFloat64(),
		NewMetamaskBalanceUSD: r.NewWalletBalanceUSD.InexactFloat64(),
		NewEthBalance:         r.NewWalletBalance.InexactFloat64(),
		MinProfitableAmount:   r.MinProfitableAmount.InexactFloat64(),
	}
	if r.TopUp != nil {
		topUp := toTopUpResponse(*r.TopUp)
		resp.TopUp = &topUp
	}
	return resp
}
