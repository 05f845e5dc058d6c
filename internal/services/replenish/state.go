package replenish

import (
	"go.uber.org/zap"
)

// State step of a card transaction.
type State string

const (
	StateIdle                  State = "idle"
	StateValidating            State = "validating"
	StateCheckingProfitability State = "checking_profitability"
	StateCheckingSufficiency   State = "checking_sufficiency"
	StateWithdrawing           State = "withdrawing"
	StateCheckingThreshold     State = "checking_threshold"
	StateSellingCrypto         State = "selling_crypto"
	StateFunding               State = "funding"
	StateDone                  State = "done"
	StateFailed                State = "failed"
)

// Failure error of an operation, tagged with the state it failed in.
// Error() is the cause's message unchanged.
type Failure struct {
	State State
	Err   error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// run tracks one operation through the state machine.
type run struct {
	requestID string
	state     State
	logger    *zap.Logger
}

func newRun(requestID string, logger *zap.Logger) *run {
	return &run{
		requestID: requestID,
		state:     StateIdle,
		logger:    logger.With(zap.String("request_id", requestID)),
	}
}

func (r *run) enter(s State) {
	r.logger.Debug("state transition",
		zap.String("from", string(r.state)),
		zap.String("to", string(s)))
	r.state = s
}

func (r *run) fail(err error) error {
	failed := r.state
	r.logger.Warn("operation failed",
		zap.String("state", string(failed)),
		zap.Error(err))
	r.state = StateFailed

	return &Failure{State: failed, Err: err}
}
