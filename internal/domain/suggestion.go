package domain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	defaultSuggestionReason = "Unable to parse AI suggestion"

	prefixAction = "ACTION:"
	prefixAmount = "AMOUNT:"
	prefixReason = "REASON:"

	suggestionAmountPlaces = 4
)

var (
	// maxBuyAmount hard cap on any buy recommendation, in ETH.
	maxBuyAmount = decimal.RequireFromString("0.5")
	// maxBalanceShare fraction of the current balance a recommendation may move.
	maxBalanceShare = decimal.RequireFromString("0.5")
)

// TradingSuggestion advisory recommendation after clamping.
type TradingSuggestion struct {
	Action Action
	// Amount ETH, non-negative, rounded to 4 decimal places.
	Amount decimal.Decimal
	Reason string
}

// HoldSuggestion is the safe default used whenever advice cannot be obtained.
func HoldSuggestion(reason string) TradingSuggestion {
	return TradingSuggestion{Action: ActionHold, Amount: decimal.Zero, Reason: reason}
}

// ParseSuggestion reads the three-line ACTION/AMOUNT/REASON reply and clamps it
// against balance. Missing fields keep their defaults (hold, 0, parse-failure reason).
// An unparsable AMOUNT is an error.
func ParseSuggestion(raw string, balance decimal.Decimal) (TradingSuggestion, error) {
	action := actionStringHold
	amount := decimal.Zero
	reason := defaultSuggestionReason

	for _, line := range strings.Split(sanitizeSuggestionPayload(raw), "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, prefixAction):
			action = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, prefixAction)))
		case strings.HasPrefix(line, prefixAmount):
			value := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, prefixAmount)))
			value = strings.TrimSpace(strings.ReplaceAll(value, "eth", ""))

			parsed, err := decimal.NewFromString(value)
			if err != nil {
				return TradingSuggestion{}, errors.Wrapf(err, "invalid amount %q", value)
			}
			amount = parsed
		case strings.HasPrefix(line, prefixReason):
			reason = strings.TrimSpace(strings.TrimPrefix(line, prefixReason))
		}
	}

	return ClampSuggestion(action, amount, reason, balance), nil
}

// ClampSuggestion applies the safety policy to a raw recommendation:
//   - buy ignores the requested amount and takes min(0.5, balance*0.5)
//   - sell takes min(requested, balance*0.5)
//   - anything else becomes hold with amount 0
//
// The final amount is taken as an absolute value and rounded to 4 places.
func ClampSuggestion(action string, requested decimal.Decimal, reason string, balance decimal.Decimal) TradingSuggestion {
	half := balance.Mul(maxBalanceShare)

	typed, _ := ParseAction(action)

	var amount decimal.Decimal
	switch typed {
	case ActionBuy:
		amount = decimal.Min(maxBuyAmount, half)
	case ActionSell:
		amount = decimal.Min(requested, half)
	default:
		typed = ActionHold
		amount = decimal.Zero
	}

	return TradingSuggestion{
		Action: typed,
		Amount: amount.Abs().RoundBank(suggestionAmountPlaces),
		Reason: reason,
	}
}

func sanitizeSuggestionPayload(raw string) string {
	response := strings.TrimSpace(raw)
	response = strings.TrimPrefix(response, "```text")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
