package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"autotrader/internal/core"
)

// TradeRecorder is the durability collaborator for closed trades.
type TradeRecorder interface {
	AppendClosedTrade(ctx context.Context, trade core.ClosedTrade) error
}

// Ledger tracks the simulated balance and delegates closed-trade durability
// to the persistent store. Mutations are only ever invoked by the engine
// during an accepted transition; concurrent readers get a snapshot.
type Ledger struct {
	mu       sync.RWMutex
	balance  decimal.Decimal
	recorder TradeRecorder
}

func NewLedger(initial float64, recorder TradeRecorder) *Ledger {
	return &Ledger{
		balance:  decimal.NewFromFloat(initial),
		recorder: recorder,
	}
}

func (l *Ledger) Balance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, _ := l.balance.Float64()
	return f
}

// Debit withdraws amount from the balance. It fails, rejecting the caller's
// transition, if the withdrawal would drive the balance negative.
func (l *Ledger) Debit(amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := decimal.NewFromFloat(amount)
	next := l.balance.Sub(d)
	if next.IsNegative() {
		return fmt.Errorf("%w: balance %s, debit %s",
			core.ErrInsufficientFunds, l.balance.StringFixed(4), d.StringFixed(4))
	}
	l.balance = next
	return nil
}

func (l *Ledger) Credit(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = l.balance.Add(decimal.NewFromFloat(amount))
}

// RecordClosedTrade appends the trade to the persistent store. The trade is
// considered complete only once the store accepted it.
func (l *Ledger) RecordClosedTrade(ctx context.Context, trade core.ClosedTrade) error {
	if err := l.recorder.AppendClosedTrade(ctx, trade); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistenceFailure, err)
	}
	return nil
}
