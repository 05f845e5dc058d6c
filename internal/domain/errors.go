package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Kind classifies failures by who can correct them.
type Kind int

const (
	// KindInternal unexpected failure, reported to callers only generically.
	KindInternal Kind = iota
	// KindValidation bad input shape or range.
	KindValidation
	// KindBusinessRule request is well-formed but violates a balance or profitability rule.
	KindBusinessRule
	// KindUpstream an external collaborator failed. Callers normally never see it,
	// the failing call degrades to a fallback value instead.
	KindUpstream
)

// String returns the string representation.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

var (
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrInvalidCurrency           = errors.New("currency must be ETH or USD")
	ErrInvalidWalletAddress      = errors.New("invalid wallet address")
	ErrAmountTooLow              = errors.New("amount too low for profitable transaction")
	ErrInsufficientCardBalance   = errors.New("insufficient card balance")
	ErrInsufficientCryptoBalance = errors.New("insufficient ETH balance")
	ErrAdvisoryVeto              = errors.New("advisory recommends holding")
)

// Error is a classified failure with a user-facing message.
type Error struct {
	Kind    Kind
	Err     error
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError wraps a validation sentinel with an actionable message.
func ValidationError(err error, message string) *Error {
	return &Error{Kind: KindValidation, Err: err, Message: message}
}

// AmountTooLowError names the computed profitability floor.
func AmountTooLowError(minimum decimal.Decimal) *Error {
	return &Error{
		Kind:    KindBusinessRule,
		Err:     ErrAmountTooLow,
		Message: fmt.Sprintf("Amount too low for profitable transaction. Minimum amount: $%s", minimum.StringFixed(2)),
		Details: map[string]interface{}{"min_profitable_amount": minimum.String()},
	}
}

// InsufficientCardBalanceError card cannot cover the requested amount.
func InsufficientCardBalanceError(have, need decimal.Decimal) *Error {
	return &Error{
		Kind:    KindBusinessRule,
		Err:     ErrInsufficientCardBalance,
		Message: "Insufficient card balance",
		Details: map[string]interface{}{"have": have.String(), "need": need.String()},
	}
}

// InsufficientCryptoBalanceError wallet cannot cover the sale required for a top-up.
func InsufficientCryptoBalanceError(need, have decimal.Decimal) *Error {
	return &Error{
		Kind:    KindBusinessRule,
		Err:     ErrInsufficientCryptoBalance,
		Message: fmt.Sprintf("Insufficient ETH balance. Need %s ETH but have %s ETH", need.StringFixed(4), have.StringFixed(4)),
		Details: map[string]interface{}{"have": have.String(), "need": need.String()},
	}
}

// AdvisoryVetoError a strong hold signal blocked an automatic sale.
func AdvisoryVetoError(reason string) *Error {
	return &Error{
		Kind:    KindBusinessRule,
		Err:     ErrAdvisoryVeto,
		Message: fmt.Sprintf("AI suggests holding: %s", reason),
	}
}

// InternalError wraps an unexpected failure.
func InternalError(err error) *Error {
	return &Error{Kind: KindInternal, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var partial *PartialReplenishmentFailure
	if errors.As(err, &partial) {
		return KindOf(partial.Cause)
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	return KindInternal
}

// PartialReplenishmentFailure the card withdrawal was committed but the top-up that
// followed it failed. Balances are left as they are: the card stays debited and
// nothing was added back.
type PartialReplenishmentFailure struct {
	WithdrawalTxHash string
	Withdrawn        decimal.Decimal
	CardBalance      decimal.Decimal
	TopUpAmount      decimal.Decimal
	Cause            error
}

func (e *PartialReplenishmentFailure) Error() string {
	return fmt.Sprintf("card debited by $%s (tx %s) but top-up of $%s failed: %v",
		e.Withdrawn.StringFixed(2), e.WithdrawalTxHash, e.TopUpAmount.StringFixed(2), e.Cause)
}

func (e *PartialReplenishmentFailure) Unwrap() error {
	return e.Cause
}
