package replenish

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cardfuel/internal/domain"
	"github.com/vadiminshakov/cardfuel/internal/services/ledger"
	"github.com/vadiminshakov/cardfuel/internal/services/profitability"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mockMarket struct {
	snapshot domain.MarketSnapshot
	calls    int
}

func (m *mockMarket) Snapshot(context.Context) domain.MarketSnapshot {
	m.calls++
	return m.snapshot
}

type mockAdvisor struct {
	suggestion domain.TradingSuggestion
	balances   []decimal.Decimal
}

func (m *mockAdvisor) Suggest(_ context.Context, balance, _ decimal.Decimal) domain.TradingSuggestion {
	m.balances = append(m.balances, balance)
	return m.suggestion
}

type memoryJournal struct {
	mu     sync.Mutex
	events []domain.JournalEvent
	err    error
}

func (j *memoryJournal) Append(event domain.JournalEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.events = append(j.events, event)
	return nil
}

type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots []domain.BalanceSnapshot
}

func (r *snapshotRecorder) Publish(s domain.BalanceSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

type outcomes map[string]int

func (o outcomes) IncTransaction(kind, outcome string) {
	o[kind+"/"+outcome]++
}

type fixture struct {
	svc     *Service
	ledger  *ledger.Ledger
	market  *mockMarket
	advisor *mockAdvisor
	journal *memoryJournal
	counts  outcomes
	stream  *snapshotRecorder
}

func newFixture(t *testing.T, card, wallet, price, gas string) *fixture {
	t.Helper()

	stream := &snapshotRecorder{}
	l, err := ledger.New(d(card), d(wallet), ledger.DefaultPolicy(), zap.NewNop(), ledger.WithPublisher(stream))
	require.NoError(t, err)

	f := &fixture{
		stream:  stream,
		ledger:  l,
		market:  &mockMarket{snapshot: domain.MarketSnapshot{Price: d(price), GasPriceGwei: d(gas)}},
		advisor: &mockAdvisor{suggestion: domain.HoldSuggestion("steady")},
		journal: &memoryJournal{},
		counts:  outcomes{},
	}

	f.svc = NewService(f.market, profitability.NewCalculator(profitability.DefaultPolicy()), l, f.advisor, zap.NewNop(),
		WithJournal(f.journal), WithCounter(f.counts))

	seq := 0
	f.svc.txRef = func() string {
		seq++
		return fmt.Sprintf("0xtx%d", seq)
	}
	f.svc.requestID = func() string { return "req" }

	return f
}

func usd(amount string) domain.TransactionRequest {
	return domain.TransactionRequest{Amount: d(amount)}
}

func TestUseCard_NoTopUpNeeded(t *testing.T) {
	f := newFixture(t, "200", "0.2", "2000", "50")

	result, err := f.svc.UseCard(context.Background(), usd("60"))
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.True(t, d("60").Equal(result.Amount))
	assert.Equal(t, "0xtx1", result.TxHash)
	assert.True(t, d("140").Equal(result.NewBalance))
	assert.True(t, d("0.2").Equal(result.NewWalletBalance))
	assert.True(t, d("400").Equal(result.NewWalletBalanceUSD))
	assert.True(t, d("50").Equal(result.MinProfitableAmount))
	assert.Nil(t, result.TopUp)

	assert.Empty(t, f.advisor.balances, "advisor is only consulted for a sale")
	assert.Equal(t, 1, f.market.calls)
}

func TestUseCard_TopUpRestoresTarget(t *testing.T) {
	f := newFixture(t, "150", "0.2", "2000", "50")

	result, err := f.svc.UseCard(context.Background(), usd("80"))
	require.NoError(t, err)

	// 150 - 80 = 70 < 100: top-up max(200-70, 2*50) = 130
	// sale: (130 * 1.05 + 2.1) / 2000 = 0.0693 ETH
	require.NotNil(t, result.TopUp)
	assert.True(t, d("130").Equal(result.TopUp.AmountAdded))
	assert.True(t, d("0.0693").Equal(result.TopUp.EthSold), "got %s", result.TopUp.EthSold)
	assert.Equal(t, "0xtx2", result.TopUp.TxHash)

	assert.True(t, d("200").Equal(result.NewBalance))
	assert.True(t, d("0.1307").Equal(result.NewWalletBalance))
	assert.True(t, d("261.4").Equal(result.NewWalletBalanceUSD))

	state := f.ledger.Snapshot()
	assert.True(t, d("200").Equal(state.Card))
	assert.True(t, d("0.1307").Equal(state.Wallet))

	require.Len(t, f.advisor.balances, 1)
	assert.True(t, d("0.2").Equal(f.advisor.balances[0]))
	// one snapshot for the whole request
	assert.Equal(t, 1, f.market.calls)
}

func TestUseCard_TopUpPublishesOneSnapshot(t *testing.T) {
	f := newFixture(t, "150", "0.2", "2000", "50")

	_, err := f.svc.UseCard(context.Background(), usd("80"))
	require.NoError(t, err)

	reasons := make([]string, 0, len(f.stream.snapshots))
	for _, s := range f.stream.snapshots {
		reasons = append(reasons, s.Reason)
		// a debited wallet is never observed next to an uncredited card
		if d(s.Wallet).LessThan(d("0.2")) {
			assert.Equal(t, "200.00", s.Card, "wallet %s published with card %s", s.Wallet, s.Card)
		}
	}
	assert.Equal(t, []string{"seed", "withdrawal", "top_up"}, reasons)

	last := f.stream.snapshots[len(f.stream.snapshots)-1]
	assert.Equal(t, "200.00", last.Card)
	assert.Equal(t, "0.1307", last.Wallet)
}

func TestUseCard_TopUpUsesTwiceMinimumWhenLarger(t *testing.T) {
	// gas 1000 gwei at 2500: cost 52.5, minimum ceil(55.125) = 55.13
	f := newFixture(t, "150", "0.2", "2500", "1000")

	result, err := f.svc.UseCard(context.Background(), usd("60"))
	require.NoError(t, err)

	require.NotNil(t, result.TopUp)
	assert.True(t, d("55.13").Equal(result.MinProfitableAmount))
	assert.True(t, d("110.26").Equal(result.TopUp.AmountAdded))
	assert.True(t, d("200.26").Equal(result.NewBalance))
	// (110.26 * 1.05 + 52.5) / 2500
	assert.True(t, d("0.0673092").Equal(result.TopUp.EthSold), "got %s", result.TopUp.EthSold)
	assert.True(t, d("0.1326908").Equal(result.NewWalletBalance))
}

func TestUseCard_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		card          string
		req           domain.TransactionRequest
		expectedErr   error
		expectedMsg   string
		expectedState State
	}{
		{
			name:          "below minimum profitable amount",
			card:          "150",
			req:           usd("40"),
			expectedErr:   domain.ErrAmountTooLow,
			expectedMsg:   "Amount too low for profitable transaction. Minimum amount: $50.00",
			expectedState: StateCheckingProfitability,
		},
		{
			name:          "insufficient card balance",
			card:          "60",
			req:           usd("80"),
			expectedErr:   domain.ErrInsufficientCardBalance,
			expectedMsg:   "Insufficient card balance",
			expectedState: StateCheckingSufficiency,
		},
		{
			name:          "non-positive amount",
			card:          "150",
			req:           usd("0"),
			expectedErr:   domain.ErrInvalidAmount,
			expectedMsg:   "Amount must be positive",
			expectedState: StateValidating,
		},
		{
			name:          "unknown currency",
			card:          "150",
			req:           domain.TransactionRequest{Amount: d("80"), Currency: "BTC"},
			expectedErr:   domain.ErrInvalidCurrency,
			expectedState: StateValidating,
		},
		{
			name:          "bad wallet address",
			card:          "150",
			req:           domain.TransactionRequest{Amount: d("80"), WalletAddress: "0x123"},
			expectedErr:   domain.ErrInvalidWalletAddress,
			expectedState: StateValidating,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.card, "0.2", "2000", "50")

			_, err := f.svc.UseCard(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectedErr), "unexpected error %v", err)
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, err.Error())
			}

			var failure *Failure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, tt.expectedState, failure.State)

			// balances untouched
			state := f.ledger.Snapshot()
			assert.True(t, d(tt.card).Equal(state.Card))
			assert.True(t, d("0.2").Equal(state.Wallet))

			assert.Equal(t, 1, f.counts["transaction/rejected"])
			require.Len(t, f.journal.events, 1)
			assert.Equal(t, domain.OutcomeRejected, f.journal.events[0].Outcome)
		})
	}
}

func TestUseCard_AdvisoryVetoLeavesWithdrawalApplied(t *testing.T) {
	f := newFixture(t, "150", "0.2", "2000", "50")
	f.advisor.suggestion = domain.TradingSuggestion{Action: domain.ActionHold, Amount: d("0.5"), Reason: "market is crashing"}

	_, err := f.svc.UseCard(context.Background(), usd("80"))
	require.Error(t, err)

	var partial *domain.PartialReplenishmentFailure
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, "0xtx1", partial.WithdrawalTxHash)
	assert.True(t, d("70").Equal(partial.CardBalance))
	assert.True(t, d("130").Equal(partial.TopUpAmount))
	assert.True(t, errors.Is(err, domain.ErrAdvisoryVeto))
	assert.Contains(t, err.Error(), "AI suggests holding: market is crashing")
	assert.Equal(t, domain.KindBusinessRule, domain.KindOf(err))

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, StateSellingCrypto, failure.State)

	// the withdrawal stays applied; the wallet was not touched
	state := f.ledger.Snapshot()
	assert.True(t, d("70").Equal(state.Card))
	assert.True(t, d("0.2").Equal(state.Wallet))

	assert.Equal(t, 1, f.counts["transaction/partial_failure"])
	require.Len(t, f.journal.events, 1)
	event := f.journal.events[0]
	assert.Equal(t, domain.OutcomePartial, event.Outcome)
	assert.Equal(t, "0xtx1", event.TxHash)
	assert.Equal(t, "70", event.CardBalance)
}

func TestUseCard_HoldBelowSaleAmountDoesNotVeto(t *testing.T) {
	f := newFixture(t, "150", "0.2", "2000", "50")
	f.advisor.suggestion = domain.TradingSuggestion{Action: domain.ActionHold, Amount: d("0.05"), Reason: "meh"}

	result, err := f.svc.UseCard(context.Background(), usd("80"))
	require.NoError(t, err)
	require.NotNil(t, result.TopUp)
	assert.Equal(t, "meh", result.TopUp.Suggestion.Reason)
}

func TestUseCard_InsufficientCryptoForTopUp(t *testing.T) {
	f := newFixture(t, "150", "0.01", "2000", "50")

	_, err := f.svc.UseCard(context.Background(), usd("80"))
	require.Error(t, err)

	var partial *domain.PartialReplenishmentFailure
	require.True(t, errors.As(err, &partial))
	assert.True(t, errors.Is(err, domain.ErrInsufficientCryptoBalance))
	assert.Contains(t, err.Error(), "Insufficient ETH balance. Need 0.0693 ETH but have 0.0100 ETH")
	assert.Empty(t, f.advisor.balances, "advisor is not consulted when the wallet is short")

	state := f.ledger.Snapshot()
	assert.True(t, d("70").Equal(state.Card))
	assert.True(t, d("0.01").Equal(state.Wallet))
}

func TestUseCard_EthCurrency(t *testing.T) {
	f := newFixture(t, "200", "0.2", "2000", "50")

	result, err := f.svc.UseCard(context.Background(), domain.TransactionRequest{Amount: d("0.04"), Currency: "eth"})
	require.NoError(t, err)

	assert.True(t, d("80").Equal(result.Amount))
	assert.True(t, d("120").Equal(result.NewBalance))
}

func TestUseCard_JournalFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, "200", "0.2", "2000", "50")
	f.journal.err = errors.New("disk full")

	_, err := f.svc.UseCard(context.Background(), usd("60"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.counts["transaction/success"])
}

func TestUseCard_Serialized(t *testing.T) {
	f := newFixture(t, "10000", "10", "2000", "50")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.UseCard(context.Background(), usd("100"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, d("8000").Equal(f.ledger.CardBalance()))
	assert.Len(t, f.journal.events, 20)
}

func TestTopUp(t *testing.T) {
	f := newFixture(t, "150", "0.2", "2000", "50")

	res, err := f.svc.TopUp(context.Background(), d("100"))
	require.NoError(t, err)

	// (100 * 1.05 + 2.1) / 2000
	assert.True(t, d("100").Equal(res.AmountAdded))
	assert.True(t, d("0.05355").Equal(res.EthSold), "got %s", res.EthSold)
	assert.True(t, d("250").Equal(res.NewBalance))
	assert.True(t, d("0.14645").Equal(res.NewWallet))
	assert.Equal(t, 1, f.counts["top_up/success"])

	_, err = f.svc.TopUp(context.Background(), d("-5"))
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Equal(t, 1, f.counts["top_up/rejected"])
}

func TestAutoSell(t *testing.T) {
	f := newFixture(t, "150", "0.2", "2000", "50")

	sale, err := f.svc.AutoSell(context.Background(), d("100"))
	require.NoError(t, err)
	assert.True(t, d("0.05355").Equal(sale.EthSold))
	assert.True(t, d("100").Equal(sale.USDReceived))

	// card is not credited by a bare sale
	assert.True(t, d("150").Equal(f.ledger.CardBalance()))
	assert.True(t, d("0.14645").Equal(f.ledger.WalletBalance()))
	require.Len(t, f.journal.events, 1)
	assert.Equal(t, domain.JournalKindSale, f.journal.events[0].Kind)

	last := f.stream.snapshots[len(f.stream.snapshots)-1]
	assert.Equal(t, "sale", last.Reason)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "80", "0.2", "2000", "50")
	f.advisor.suggestion = domain.TradingSuggestion{Action: domain.ActionSell, Amount: d("0.05"), Reason: "trim"}

	report, err := f.svc.Status(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, d("80").Equal(report.CardBalance))
	assert.True(t, d("0.2").Equal(report.WalletBalance))
	assert.True(t, d("2000").Equal(report.Price))
	assert.True(t, d("50").Equal(report.GasPriceGwei))
	assert.True(t, d("50").Equal(report.MinProfitableAmount))
	assert.True(t, d("400").Equal(report.WalletBalanceUSD))
	assert.Equal(t, domain.ActionSell, report.Suggestion.Action)
	assert.Equal(t, domain.ThresholdTopUp, report.Decision.Action)
	assert.True(t, d("120").Equal(report.Decision.Amount))

	// read-only
	assert.True(t, d("80").Equal(f.ledger.CardBalance()))
	assert.Empty(t, f.journal.events)

	_, err = f.svc.Status(context.Background(), "not-an-address")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
