package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRequest_Validate(t *testing.T) {
	tests := []struct {
		name        string
		req         TransactionRequest
		expectedErr error
	}{
		{
			name: "valid USD request",
			req:  TransactionRequest{Amount: decimal.NewFromInt(80), Currency: CurrencyUSD},
		},
		{
			name: "valid ETH request with wallet",
			req: TransactionRequest{
				Amount:        decimal.RequireFromString("0.04"),
				Currency:      CurrencyETH,
				WalletAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			},
		},
		{
			name:        "zero amount",
			req:         TransactionRequest{Amount: decimal.Zero, Currency: CurrencyUSD},
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "negative amount",
			req:         TransactionRequest{Amount: decimal.NewFromInt(-5), Currency: CurrencyUSD},
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "unsupported currency",
			req:         TransactionRequest{Amount: decimal.NewFromInt(80), Currency: "BTC"},
			expectedErr: ErrInvalidCurrency,
		},
		{
			name: "malformed wallet address",
			req: TransactionRequest{
				Amount:        decimal.NewFromInt(80),
				Currency:      CurrencyUSD,
				WalletAddress: "0x1234",
			},
			expectedErr: ErrInvalidWalletAddress,
		},
		{
			name: "wallet address without prefix",
			req: TransactionRequest{
				Amount:        decimal.NewFromInt(80),
				Currency:      CurrencyUSD,
				WalletAddress: "5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			},
			expectedErr: ErrInvalidWalletAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.expectedErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectedErr))
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestTransactionRequest_Normalize(t *testing.T) {
	req := TransactionRequest{Amount: decimal.NewFromInt(1), Currency: " eth ", WalletAddress: " 0xabc "}.Normalize()
	assert.Equal(t, CurrencyETH, req.Currency)
	assert.Equal(t, "0xabc", req.WalletAddress)

	req = TransactionRequest{Amount: decimal.NewFromInt(1)}.Normalize()
	assert.Equal(t, CurrencyUSD, req.Currency)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindBusinessRule, KindOf(AmountTooLowError(decimal.NewFromInt(50))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	partial := &PartialReplenishmentFailure{
		WithdrawalTxHash: "0x01",
		Withdrawn:        decimal.NewFromInt(80),
		CardBalance:      decimal.NewFromInt(70),
		TopUpAmount:      decimal.NewFromInt(130),
		Cause:            AdvisoryVetoError("wait"),
	}
	assert.Equal(t, KindBusinessRule, KindOf(partial))
	assert.True(t, errors.Is(partial, ErrAdvisoryVeto))
	assert.Contains(t, partial.Error(), "AI suggests holding: wait")
}

func TestAmountTooLowError_Message(t *testing.T) {
	err := AmountTooLowError(decimal.RequireFromString("52.5"))
	assert.Equal(t, "Amount too low for profitable transaction. Minimum amount: $52.50", err.Error())
}

func TestNewTxReference(t *testing.T) {
	ref := NewTxReference()
	assert.Len(t, ref, 66)
	assert.Equal(t, "0x", ref[:2])
	assert.NotEqual(t, ref, NewTxReference())
}

func TestMarketSnapshot_Conversions(t *testing.T) {
	snapshot := MarketSnapshot{Price: decimal.NewFromInt(2000)}

	assert.True(t, snapshot.ToFiat(decimal.RequireFromString("0.04")).Equal(decimal.NewFromInt(80)))
	assert.True(t, snapshot.ToCrypto(decimal.NewFromInt(80)).Equal(decimal.RequireFromString("0.04")))
	assert.True(t, MarketSnapshot{}.ToCrypto(decimal.NewFromInt(80)).IsZero())
}
