package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/account"
	"autotrader/internal/core"
	"autotrader/internal/indicator"
)

type marketStub struct {
	mu       sync.Mutex
	bars     []core.Bar
	price    float64
	barsErr  error
	priceErr error
}

func (m *marketStub) FetchRecentBars(context.Context, string, int) ([]core.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.barsErr != nil {
		return nil, m.barsErr
	}
	return m.bars, nil
}

func (m *marketStub) CurrentPrice(context.Context, string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.priceErr != nil {
		return 0, m.priceErr
	}
	return m.price, nil
}

type storeStub struct {
	mu       sync.Mutex
	bars     []core.Bar
	trades   []core.ClosedTrade
	tradeErr error
}

func (s *storeStub) AppendBars(_ context.Context, bars []core.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = append(s.bars, bars...)
	return nil
}

func (s *storeStub) ReadBars(context.Context, string) ([]core.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Bar, len(s.bars))
	copy(out, s.bars)
	return out, nil
}

func (s *storeStub) AppendClosedTrade(_ context.Context, t core.ClosedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tradeErr != nil {
		return s.tradeErr
	}
	s.trades = append(s.trades, t)
	return nil
}

func (s *storeStub) ReadClosedTrades(context.Context) ([]core.ClosedTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ClosedTrade, len(s.trades))
	copy(out, s.trades)
	return out, nil
}

type execStub struct {
	mu        sync.Mutex
	placed    []core.Order
	cancelled []core.Side
	placeErr  error
	cancelErr error
	price     float64
}

func (x *execStub) PlaceOrder(_ context.Context, side core.Side, amount float64) (core.Order, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.placeErr != nil {
		return core.Order{}, x.placeErr
	}
	order := core.Order{
		ID:        int64(len(x.placed) + 1),
		Side:      side,
		Amount:    amount,
		Price:     x.price,
		Timestamp: time.Now().UTC(),
	}
	x.placed = append(x.placed, order)
	return order, nil
}

func (x *execStub) CancelOpenOrders(_ context.Context, side core.Side) ([]core.Order, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cancelErr != nil {
		return nil, x.cancelErr
	}
	x.cancelled = append(x.cancelled, side)
	return nil, nil
}

func (x *execStub) placedCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.placed)
}

type fixture struct {
	engine *Engine
	market *marketStub
	store  *storeStub
	exec   *execStub
	ledger *account.Ledger
}

func newFixture(t *testing.T, balance, riskPercent float64) *fixture {
	t.Helper()
	market := &marketStub{price: 100}
	store := &storeStub{}
	ex := &execStub{price: 100}
	ledger := account.NewLedger(balance, store)
	eng := New(Options{
		Symbol:       "RUNEUSDT",
		TickInterval: 10 * time.Millisecond,
		RiskPercent:  riskPercent,
		DryRun:       true,
		Indicators:   indicator.DefaultParams(),
		Market:       market,
		Store:        store,
		Exec:         ex,
		Ledger:       ledger,
	})
	return &fixture{engine: eng, market: market, store: store, exec: ex, ledger: ledger}
}

func TestOrderSize(t *testing.T) {
	// balance 10000, price 100, risk 90% -> 90 units
	assert.InDelta(t, 90.0, orderSize(10000, 100, 90), 1e-9)
	assert.Zero(t, orderSize(10000, 0, 90))
}

func TestEnterLongOpensPositionAndDebits(t *testing.T) {
	f := newFixture(t, 10000, 90)
	ctx := context.Background()

	f.engine.transition(ctx, core.TradeSignal{EnterLong: true}, 100)

	pos := f.engine.position()
	require.NotNil(t, pos)
	assert.Equal(t, core.Long, pos.Side)
	assert.InDelta(t, 90.0, pos.Amount, 1e-9)
	assert.InDelta(t, 100.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 1000.0, f.ledger.Balance(), 1e-9, "balance debited by cost 9000")
	assert.Equal(t, 1, f.exec.placedCount())
}

func TestExitLongRealizesProfit(t *testing.T) {
	f := newFixture(t, 0, 90)
	ctx := context.Background()
	f.engine.setPosition(&core.Position{
		ID: 1, Symbol: "RUNEUSDT", Side: core.Long, Amount: 10, EntryPrice: 100,
		OpenedAt: time.Now().UTC(),
	})

	f.engine.transition(ctx, core.TradeSignal{ExitLong: true}, 120)

	assert.Nil(t, f.engine.position())
	assert.InDelta(t, 1200.0, f.ledger.Balance(), 1e-9, "entry cost 1000 plus profit 200")
	require.Len(t, f.store.trades, 1)
	assert.InDelta(t, 200.0, f.store.trades[0].Profit, 1e-9)
	assert.Equal(t, core.Long, f.store.trades[0].Side)
}

func TestExitShortRealizesProfit(t *testing.T) {
	f := newFixture(t, 0, 90)
	ctx := context.Background()
	f.engine.setPosition(&core.Position{
		ID: 1, Symbol: "RUNEUSDT", Side: core.Short, Amount: 10, EntryPrice: 100,
		OpenedAt: time.Now().UTC(),
	})

	f.engine.transition(ctx, core.TradeSignal{ExitShort: true}, 80)

	assert.Nil(t, f.engine.position())
	require.Len(t, f.store.trades, 1)
	assert.InDelta(t, 200.0, f.store.trades[0].Profit, 1e-9)
	assert.InDelta(t, 1200.0, f.ledger.Balance(), 1e-9)
}

func TestEntryRejectedOnInsufficientFunds(t *testing.T) {
	// risk over 100% makes the entry cost exceed the balance
	f := newFixture(t, 50, 150)
	ctx := context.Background()

	f.engine.transition(ctx, core.TradeSignal{EnterLong: true}, 100)

	assert.Nil(t, f.engine.position(), "state remains flat")
	assert.InDelta(t, 50.0, f.ledger.Balance(), 1e-9, "balance unchanged")
	assert.Zero(t, f.exec.placedCount(), "no order reaches the venue")
}

func TestEntryExecutionFailureRefundsDebit(t *testing.T) {
	f := newFixture(t, 10000, 90)
	f.exec.placeErr = core.ErrExecutionFailure
	ctx := context.Background()

	f.engine.transition(ctx, core.TradeSignal{EnterLong: true}, 100)

	assert.Nil(t, f.engine.position())
	assert.InDelta(t, 10000.0, f.ledger.Balance(), 1e-9, "debit refunded after venue failure")
}

func TestExitExecutionFailureKeepsPositionOpen(t *testing.T) {
	f := newFixture(t, 0, 90)
	f.exec.cancelErr = core.ErrExecutionFailure
	ctx := context.Background()
	f.engine.setPosition(&core.Position{
		ID: 1, Symbol: "RUNEUSDT", Side: core.Long, Amount: 10, EntryPrice: 100,
	})

	f.engine.transition(ctx, core.TradeSignal{ExitLong: true}, 120)

	require.NotNil(t, f.engine.position(), "position is never silently dropped")
	assert.InDelta(t, 0.0, f.ledger.Balance(), 1e-9)
	assert.Empty(t, f.store.trades)
}

func TestPersistenceFailureStillClearsPosition(t *testing.T) {
	f := newFixture(t, 0, 90)
	f.store.tradeErr = core.ErrPersistenceFailure
	ctx := context.Background()
	f.engine.setPosition(&core.Position{
		ID: 1, Symbol: "RUNEUSDT", Side: core.Long, Amount: 10, EntryPrice: 100,
	})

	f.engine.transition(ctx, core.TradeSignal{ExitLong: true}, 120)

	assert.Nil(t, f.engine.position(), "trade is closed in memory despite the logging failure")
	assert.InDelta(t, 1200.0, f.ledger.Balance(), 1e-9, "proceeds still credited")
}

func TestNoEntryWhileHolding(t *testing.T) {
	f := newFixture(t, 10000, 90)
	ctx := context.Background()

	f.engine.transition(ctx, core.TradeSignal{EnterLong: true}, 100)
	require.NotNil(t, f.engine.position())

	// a fresh entry signal while holding must not open a second position
	f.engine.transition(ctx, core.TradeSignal{EnterLong: true}, 110)
	f.engine.transition(ctx, core.TradeSignal{EnterShort: true}, 110)

	assert.Equal(t, 1, f.exec.placedCount(), "at most one open position")
	pos := f.engine.position()
	require.NotNil(t, pos)
	assert.InDelta(t, 100.0, pos.EntryPrice, 1e-9)
}

func TestBalanceNeverNegativeOverRandomTransitions(t *testing.T) {
	f := newFixture(t, 1000, 90)
	ctx := context.Background()

	signals := []core.TradeSignal{
		{EnterLong: true}, {ExitLong: true},
		{EnterShort: true}, {ExitShort: true},
		{EnterLong: true}, {EnterLong: true}, {ExitLong: true},
	}
	prices := []float64{100, 95, 90, 105, 98, 102, 80}
	for i, sig := range signals {
		f.engine.transition(ctx, sig, prices[i])
		assert.GreaterOrEqual(t, f.ledger.Balance(), 0.0, "after transition %d", i)
	}
}

func TestTickAbortsWithoutPrice(t *testing.T) {
	f := newFixture(t, 10000, 90)
	f.market.bars = []core.Bar{{Symbol: "RUNEUSDT", Timestamp: time.Now().UTC(), Close: 100, Volume: 10}}
	f.market.priceErr = core.ErrDataUnavailable
	ctx := context.Background()

	f.engine.Tick(ctx)

	assert.Zero(t, f.exec.placedCount())
	assert.Nil(t, f.engine.position())
}

func TestTickAbortsOnBarFetchFailure(t *testing.T) {
	f := newFixture(t, 10000, 90)
	f.market.barsErr = core.ErrDataUnavailable
	ctx := context.Background()

	f.engine.Tick(ctx)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Empty(t, f.store.bars, "nothing persisted on an aborted tick")
}

func TestStartStopIdempotent(t *testing.T) {
	f := newFixture(t, 10000, 90)
	f.market.bars = []core.Bar{{Symbol: "RUNEUSDT", Timestamp: time.Now().UTC(), Close: 100, Volume: 10}}
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx))
	assert.ErrorIs(t, f.engine.Start(ctx), core.ErrAlreadyRunning)
	assert.True(t, f.engine.Running())

	require.NoError(t, f.engine.Stop())
	assert.ErrorIs(t, f.engine.Stop(), core.ErrNotRunning)
	assert.False(t, f.engine.Running())

	// a fresh start after a stop works again
	require.NoError(t, f.engine.Start(ctx))
	require.NoError(t, f.engine.Stop())
}

func TestPositionStatus(t *testing.T) {
	f := newFixture(t, 10000, 90)

	assert.Contains(t, f.engine.PositionStatus(), "No open position")

	f.engine.setPosition(&core.Position{
		ID: 7, Symbol: "RUNEUSDT", Side: core.Long, Amount: 90, EntryPrice: 100,
	})
	status := f.engine.PositionStatus()
	assert.Contains(t, status, "RUNEUSDT")
	assert.Contains(t, status, "long")
}
