package domain

import (
	"encoding/json"
	"strings"
)

// Action represents the trading action recommended by the advisor.
type Action int

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
)

// action string constants to avoid magic strings
const (
	actionStringHold = "hold"
	actionStringBuy  = "buy"
	actionStringSell = "sell"
)

// ParseAction converts a free-form action string into a typed Action.
// Anything that is not buy or sell is reported as not ok.
func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case actionStringBuy:
		return ActionBuy, true
	case actionStringSell:
		return ActionSell, true
	case actionStringHold:
		return ActionHold, true
	}
	return ActionHold, false
}

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionHold:
		return actionStringHold
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the action as its lowercase name.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}
