// Package replenish runs card transactions: profitability and sufficiency checks,
// the withdrawal, and the ETH sale that tops the card back up when it drops below
// the threshold.
package replenish

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cardfuel/internal/domain"
	"github.com/vadiminshakov/cardfuel/internal/services/ledger"
	"github.com/vadiminshakov/cardfuel/internal/services/profitability"
)

// StatusSuccess status of a completed card transaction.
const StatusSuccess = "Card Transaction Successful"

type marketData interface {
	Snapshot(ctx context.Context) domain.MarketSnapshot
}

type advisor interface {
	Suggest(ctx context.Context, balance, price decimal.Decimal) domain.TradingSuggestion
}

type journal interface {
	Append(event domain.JournalEvent) error
}

type outcomeCounter interface {
	IncTransaction(kind, outcome string)
}

// Service serializes every mutating operation behind one mutex. Status does not take it.
type Service struct {
	mu sync.Mutex

	market  marketData
	calc    *profitability.Calculator
	ledger  *ledger.Ledger
	advisor advisor
	journal journal
	counter outcomeCounter
	logger  *zap.Logger

	now       func() time.Time
	txRef     func() string
	requestID func() string
}

// Option configures the Service.
type Option func(*Service)

// WithJournal records every operation outcome.
func WithJournal(j journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithCounter counts operation outcomes.
func WithCounter(c outcomeCounter) Option {
	return func(s *Service) {
		s.counter = c
	}
}

func NewService(market marketData, calc *profitability.Calculator, l *ledger.Ledger, adv advisor, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		market:    market,
		calc:      calc,
		ledger:    l,
		advisor:   adv,
		logger:    logger.With(zap.String("component", "replenish")),
		now:       time.Now,
		txRef:     domain.NewTxReference,
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// UseCard withdraws req.Amount from the card and, if the card drops below the threshold,
// sells ETH to top it up. Once the withdrawal is committed a failing top-up is reported
// as *domain.PartialReplenishmentFailure and the withdrawal stays applied.
func (s *Service) UseCard(ctx context.Context, req domain.TransactionRequest) (domain.TransactionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := newRun(s.requestID(), s.logger)
	event := domain.JournalEvent{Kind: domain.JournalKindTransaction, RequestID: r.requestID}

	result, err := s.useCard(ctx, r, req, &event)
	s.record(event, err)

	return result, err
}

func (s *Service) useCard(ctx context.Context, r *run, req domain.TransactionRequest, event *domain.JournalEvent) (domain.TransactionResult, error) {
	r.enter(StateValidating)
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return domain.TransactionResult{}, r.fail(err)
	}

	r.enter(StateCheckingProfitability)
	snapshot := s.market.Snapshot(ctx)
	event.Price = snapshot.Price.String()
	event.GasPriceGwei = snapshot.GasPriceGwei.String()

	minProfitable := s.calc.MinimumProfitableAmount(snapshot.GasPriceGwei, snapshot.Price)

	fiat := req.Amount
	if req.Currency == domain.CurrencyETH {
		fiat = snapshot.ToFiat(req.Amount)
	}
	event.Amount = fiat.String()

	if fiat.LessThan(minProfitable) {
		return domain.TransactionResult{}, r.fail(domain.AmountTooLowError(minProfitable))
	}

	r.enter(StateCheckingSufficiency)
	card := s.ledger.CardBalance()
	if card.LessThan(fiat) {
		return domain.TransactionResult{}, r.fail(domain.InsufficientCardBalanceError(card, fiat))
	}

	r.enter(StateWithdrawing)
	txHash := s.txRef()
	s.ledger.ApplyWithdrawal(fiat)
	event.TxHash = txHash
	r.logger.Info("simulated card transaction",
		zap.String("amount", fiat.String()),
		zap.String("tx", txHash))

	r.enter(StateCheckingThreshold)
	newCard := s.ledger.CardBalance()

	var topUp *domain.TopUpResult
	if decision := s.ledger.EvaluateThreshold(newCard); decision.Action == domain.ThresholdTopUp {
		target := decimal.Max(s.ledger.Policy().TargetBalance.Sub(newCard), minProfitable.Mul(decimal.NewFromInt(2)))
		r.logger.Info("card below threshold, topping up",
			zap.String("card", newCard.String()),
			zap.String("top_up", target.String()))

		res, err := s.topUp(ctx, r, snapshot, target)
		if err != nil {
			return domain.TransactionResult{}, r.fail(&domain.PartialReplenishmentFailure{
				WithdrawalTxHash: txHash,
				Withdrawn:        fiat,
				CardBalance:      s.ledger.CardBalance(),
				TopUpAmount:      target,
				Cause:            err,
			})
		}
		topUp = &res
		event.SaleTxHash = res.TxHash
		event.EthSold = res.EthSold.String()
	}

	r.enter(StateDone)
	state := s.ledger.Snapshot()

	return domain.TransactionResult{
		Status:              StatusSuccess,
		Amount:              fiat,
		TxHash:              txHash,
		NewBalance:          state.Card,
		NewWalletBalanceUSD: snapshot.ToFiat(state.Wallet),
		NewWalletBalance:    state.Wallet,
		MinProfitableAmount: minProfitable,
		TopUp:               topUp,
	}, nil
}

// TopUp sells ETH and credits the card with targetFiat, independent of any withdrawal.
func (s *Service) TopUp(ctx context.Context, targetFiat decimal.Decimal) (domain.TopUpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := newRun(s.requestID(), s.logger)
	event := domain.JournalEvent{Kind: domain.JournalKindTopUp, RequestID: r.requestID, Amount: targetFiat.String()}

	result, err := s.standaloneTopUp(ctx, r, targetFiat, &event)
	s.record(event, err)

	return result, err
}

func (s *Service) standaloneTopUp(ctx context.Context, r *run, targetFiat decimal.Decimal, event *domain.JournalEvent) (domain.TopUpResult, error) {
	r.enter(StateValidating)
	if !targetFiat.IsPositive() {
		return domain.TopUpResult{}, r.fail(domain.ValidationError(domain.ErrInvalidAmount, "Amount must be positive"))
	}

	snapshot := s.market.Snapshot(ctx)
	event.Price = snapshot.Price.String()
	event.GasPriceGwei = snapshot.GasPriceGwei.String()

	res, err := s.topUp(ctx, r, snapshot, targetFiat)
	if err != nil {
		return domain.TopUpResult{}, r.fail(err)
	}
	event.SaleTxHash = res.TxHash
	event.EthSold = res.EthSold.String()

	r.enter(StateDone)
	return res, nil
}

// AutoSell sells enough ETH to cover targetFiat plus margin and fees without crediting the card.
func (s *Service) AutoSell(ctx context.Context, targetFiat decimal.Decimal) (domain.SaleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := newRun(s.requestID(), s.logger)
	event := domain.JournalEvent{Kind: domain.JournalKindSale, RequestID: r.requestID, Amount: targetFiat.String()}

	result, err := s.standaloneSale(ctx, r, targetFiat, &event)
	s.record(event, err)

	return result, err
}

func (s *Service) standaloneSale(ctx context.Context, r *run, targetFiat decimal.Decimal, event *domain.JournalEvent) (domain.SaleResult, error) {
	r.enter(StateValidating)
	if !targetFiat.IsPositive() {
		return domain.SaleResult{}, r.fail(domain.ValidationError(domain.ErrInvalidAmount, "Amount must be positive"))
	}

	snapshot := s.market.Snapshot(ctx)
	event.Price = snapshot.Price.String()
	event.GasPriceGwei = snapshot.GasPriceGwei.String()

	sale, err := s.sell(ctx, r, snapshot, targetFiat)
	if err != nil {
		return domain.SaleResult{}, r.fail(err)
	}
	event.SaleTxHash = sale.TxHash
	event.EthSold = sale.EthSold.String()

	r.enter(StateDone)
	return sale, nil
}

// topUp sells ETH for target and credits the card with target. The wallet debit and
// the card credit land in one ledger mutation. Caller holds s.mu.
func (s *Service) topUp(ctx context.Context, r *run, snapshot domain.MarketSnapshot, target decimal.Decimal) (domain.TopUpResult, error) {
	quote, err := s.quoteSale(ctx, r, snapshot, target)
	if err != nil {
		return domain.TopUpResult{}, err
	}

	r.enter(StateFunding)
	if err := s.ledger.ApplyTopUp(target, quote.EthSold); err != nil {
		return domain.TopUpResult{}, domain.InternalError(err)
	}
	sale := s.settle(r, quote)
	state := s.ledger.Snapshot()

	return domain.TopUpResult{
		AmountAdded: target,
		EthSold:     sale.EthSold,
		TxHash:      sale.TxHash,
		Suggestion:  sale.Suggestion,
		NewBalance:  state.Card,
		NewWallet:   state.Wallet,
	}, nil
}

// sell debits the wallet for target without crediting the card. Caller holds s.mu.
func (s *Service) sell(ctx context.Context, r *run, snapshot domain.MarketSnapshot, target decimal.Decimal) (domain.SaleResult, error) {
	quote, err := s.quoteSale(ctx, r, snapshot, target)
	if err != nil {
		return domain.SaleResult{}, err
	}

	if err := s.ledger.ApplySale(quote.EthSold); err != nil {
		return domain.SaleResult{}, domain.InternalError(err)
	}

	return s.settle(r, quote), nil
}

// quoteSale prices a sale of (target × margin + fee) / price and refuses it when the
// wallet is short or the advisor vetoes. Balances are not touched.
func (s *Service) quoteSale(ctx context.Context, r *run, snapshot domain.MarketSnapshot, target decimal.Decimal) (domain.SaleResult, error) {
	r.enter(StateSellingCrypto)

	cost := s.calc.TransactionCost(snapshot.GasPriceGwei, snapshot.Price)
	requiredFiat := target.Mul(s.calc.Policy().ProfitMargin).Add(cost)
	eth := snapshot.ToCrypto(requiredFiat)
	if !eth.IsPositive() {
		return domain.SaleResult{}, domain.InternalError(errors.Errorf("cannot price sale of $%s at %s", requiredFiat, snapshot.Price))
	}

	wallet := s.ledger.WalletBalance()
	if eth.GreaterThan(wallet) {
		return domain.SaleResult{}, domain.InsufficientCryptoBalanceError(eth, wallet)
	}

	suggestion := s.advisor.Suggest(ctx, wallet, snapshot.Price)
	if suggestion.Action == domain.ActionHold && suggestion.Amount.GreaterThan(eth) {
		return domain.SaleResult{}, domain.AdvisoryVetoError(suggestion.Reason)
	}

	return domain.SaleResult{
		EthSold:     eth,
		USDReceived: target,
		Suggestion:  suggestion,
	}, nil
}

// settle stamps a committed sale with its tx reference.
func (s *Service) settle(r *run, sale domain.SaleResult) domain.SaleResult {
	sale.TxHash = s.txRef()
	r.logger.Info("simulated ETH sale",
		zap.String("eth", sale.EthSold.StringFixed(4)),
		zap.String("tx", sale.TxHash))

	return sale
}

// Status reports balances, market data and advice on one market snapshot. Read-only.
func (s *Service) Status(ctx context.Context, walletAddress string) (domain.StatusReport, error) {
	if err := domain.ValidateWalletAddress(walletAddress); err != nil {
		return domain.StatusReport{}, err
	}

	snapshot := s.market.Snapshot(ctx)
	state := s.ledger.Snapshot()

	return domain.StatusReport{
		CardBalance:         state.Card,
		WalletBalance:       state.Wallet,
		Price:               snapshot.Price,
		GasPriceGwei:        snapshot.GasPriceGwei,
		MinProfitableAmount: s.calc.MinimumProfitableAmount(snapshot.GasPriceGwei, snapshot.Price),
		WalletBalanceUSD:    snapshot.ToFiat(state.Wallet),
		Suggestion:          s.advisor.Suggest(ctx, state.Wallet, snapshot.Price),
		Decision:            s.ledger.EvaluateThreshold(state.Card),
	}, nil
}

func (s *Service) record(event domain.JournalEvent, err error) {
	event.Timestamp = s.now()
	event.Outcome = outcomeOf(err)
	if err != nil {
		event.Error = err.Error()
	}

	state := s.ledger.Snapshot()
	event.CardBalance = state.Card.String()
	event.WalletBalance = state.Wallet.String()

	if s.counter != nil {
		s.counter.IncTransaction(string(event.Kind), event.Outcome)
	}
	if s.journal == nil {
		return
	}
	if jerr := s.journal.Append(event); jerr != nil {
		s.logger.Warn("failed to journal outcome",
			zap.String("request_id", event.RequestID),
			zap.Error(jerr))
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return domain.OutcomeSuccess
	}

	var partial *domain.PartialReplenishmentFailure
	if errors.As(err, &partial) {
		return domain.OutcomePartial
	}

	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindBusinessRule:
		return domain.OutcomeRejected
	default:
		return domain.OutcomeFailed
	}
}
