package account

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/core"
)

type recorderStub struct {
	trades []core.ClosedTrade
	err    error
}

func (r *recorderStub) AppendClosedTrade(_ context.Context, t core.ClosedTrade) error {
	if r.err != nil {
		return r.err
	}
	r.trades = append(r.trades, t)
	return nil
}

func TestDebitCreditRoundTrip(t *testing.T) {
	l := NewLedger(10000, &recorderStub{})

	require.NoError(t, l.Debit(1000))
	assert.InDelta(t, 9000.0, l.Balance(), 1e-9)

	l.Credit(1200)
	assert.InDelta(t, 10200.0, l.Balance(), 1e-9)
}

func TestDebitRejectsOverdraw(t *testing.T) {
	l := NewLedger(50, &recorderStub{})

	err := l.Debit(100)

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsufficientFunds))
	assert.InDelta(t, 50.0, l.Balance(), 1e-9, "balance must be unchanged after a rejected debit")
}

func TestDebitExactBalanceAllowed(t *testing.T) {
	l := NewLedger(100, &recorderStub{})

	require.NoError(t, l.Debit(100))
	assert.InDelta(t, 0.0, l.Balance(), 1e-9)
}

func TestRecordClosedTradeDelegates(t *testing.T) {
	rec := &recorderStub{}
	l := NewLedger(0, rec)
	trade := core.ClosedTrade{Symbol: "RUNEUSDT", Side: core.Long, Amount: 10, Price: 120, Profit: 200}

	require.NoError(t, l.RecordClosedTrade(context.Background(), trade))
	require.Len(t, rec.trades, 1)
	assert.Equal(t, trade, rec.trades[0])
}

func TestRecordClosedTradeWrapsPersistenceFailure(t *testing.T) {
	rec := &recorderStub{err: errors.New("disk full")}
	l := NewLedger(0, rec)

	err := l.RecordClosedTrade(context.Background(), core.ClosedTrade{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrPersistenceFailure))
}
