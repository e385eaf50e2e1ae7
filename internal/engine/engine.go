package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"autotrader/internal/account"
	"autotrader/internal/core"
	"autotrader/internal/indicator"
	"autotrader/internal/strategy"
)

// VenueAccount exposes the live quote-asset balance. Only consulted when
// dry-run is off; the simulated ledger owns the balance otherwise.
type VenueAccount interface {
	AccountBalance(ctx context.Context) (float64, error)
}

type Options struct {
	Symbol       string
	TickInterval time.Duration
	RiskPercent  float64
	DryRun       bool
	Indicators   indicator.Params

	Market core.MarketData
	Store  core.Store
	Exec   core.ExecutionPort
	Ledger *account.Ledger
	Venue  VenueAccount
}

// Engine drives the single-position state machine. One goroutine runs the
// tick loop; ticks execute the fetch-compute-decide pipeline synchronously
// and never overlap. The engine is the only writer of the position and the
// ledger; control-surface queries read snapshots and tolerate staleness
// between ticks.
type Engine struct {
	opts Options

	ctl     sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	posMu sync.RWMutex
	pos   *core.Position
}

func New(opts Options) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Minute
	}
	if opts.RiskPercent <= 0 {
		opts.RiskPercent = 90
	}
	return &Engine{opts: opts}
}

// Start launches the tick loop. Starting a running engine is a no-op
// reported as ErrAlreadyRunning.
func (e *Engine) Start(ctx context.Context) error {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if e.running {
		return core.ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	go e.run(runCtx, e.done)
	log.Info().Str("symbol", e.opts.Symbol).Dur("interval", e.opts.TickInterval).
		Bool("dry_run", e.opts.DryRun).Msg("engine started")
	return nil
}

// Stop requests a cooperative stop and waits for the in-flight tick to
// finish. Stopping a stopped engine reports ErrNotRunning.
func (e *Engine) Stop() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if !e.running {
		return core.ErrNotRunning
	}
	e.cancel()
	<-e.done
	e.running = false
	log.Info().Msg("engine stopped")
	return nil
}

func (e *Engine) Running() bool {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	return e.running
}

// run ticks on the fixed interval. Cancellation is observed at tick
// boundaries only, so at most one tick completes after a stop request.
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	for {
		e.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one full pipeline pass: ingest the latest bar, recompute
// indicators over the stored history, derive the signal and drive the state
// machine. Any data failure aborts the tick; the next tick retries from
// scratch.
func (e *Engine) Tick(ctx context.Context) {
	bars, err := e.opts.Market.FetchRecentBars(ctx, e.opts.Symbol, 1)
	if err != nil {
		log.Warn().Err(err).Msg("tick aborted: bar fetch")
		return
	}
	if err := e.opts.Store.AppendBars(ctx, bars); err != nil {
		// History already persisted keeps the pipeline going.
		log.Error().Err(err).Msg("bar persistence failed")
	}
	history, err := e.opts.Store.ReadBars(ctx, e.opts.Symbol)
	if err != nil {
		log.Warn().Err(err).Msg("tick aborted: bar history")
		return
	}
	if len(history) == 0 {
		log.Warn().Msg("tick aborted: empty bar history")
		return
	}

	price, err := e.opts.Market.CurrentPrice(ctx, e.opts.Symbol)
	if err != nil {
		log.Warn().Err(err).Msg("tick aborted: current price")
		return
	}

	rows := indicator.Compute(history, e.opts.Indicators)
	sig := strategy.Evaluate(rows[len(rows)-1])
	e.transition(ctx, sig, price)
}

// transition applies one state-machine step. Entry signals are only
// evaluated while flat; holding a position, only its exit signal matters.
func (e *Engine) transition(ctx context.Context, sig core.TradeSignal, price float64) {
	pos := e.position()
	switch {
	case pos == nil:
		if sig.EnterLong {
			e.open(ctx, core.Long, price)
		} else if sig.EnterShort {
			e.open(ctx, core.Short, price)
		}
	case pos.Side == core.Long:
		if sig.ExitLong {
			e.close(ctx, *pos, price)
		}
	default:
		if sig.ExitShort {
			e.close(ctx, *pos, price)
		}
	}
}

func (e *Engine) open(ctx context.Context, side core.Side, price float64) {
	balance, err := e.balanceAt(ctx)
	if err != nil {
		log.Error().Err(err).Msg("entry skipped: balance unavailable")
		return
	}
	amount := orderSize(balance, price, e.opts.RiskPercent)
	if amount <= 0 {
		log.Warn().Float64("balance", balance).Msg("entry skipped: zero order size")
		return
	}

	cost := price * amount
	if e.opts.DryRun {
		if err := e.opts.Ledger.Debit(cost); err != nil {
			log.Warn().Err(err).Float64("cost", cost).Msg("entry rejected")
			return
		}
	}

	order, err := e.opts.Exec.PlaceOrder(ctx, side, amount)
	if err != nil {
		if e.opts.DryRun {
			e.opts.Ledger.Credit(cost)
		}
		log.Error().Err(err).Str("side", string(side)).Msg("entry failed, staying flat")
		return
	}

	entryPrice := order.Price
	if entryPrice <= 0 {
		entryPrice = price
	}
	openedAt := order.Timestamp
	if openedAt.IsZero() {
		openedAt = time.Now().UTC()
	}
	e.setPosition(&core.Position{
		ID:         order.ID,
		Symbol:     e.opts.Symbol,
		Side:       side,
		Amount:     amount,
		EntryPrice: entryPrice,
		OpenedAt:   openedAt,
	})
	log.Info().Str("side", string(side)).Float64("amount", amount).
		Float64("entry", entryPrice).Msg("position opened")
}

func (e *Engine) close(ctx context.Context, pos core.Position, price float64) {
	if _, err := e.opts.Exec.CancelOpenOrders(ctx, pos.Side); err != nil {
		// An open position is never silently dropped; retried next tick.
		log.Error().Err(err).Msg("exit failed, position stays open")
		return
	}

	profit := (price - pos.EntryPrice) * pos.Amount
	if pos.Side == core.Short {
		profit = (pos.EntryPrice - price) * pos.Amount
	}
	if e.opts.DryRun {
		// Proceeds = reserved entry cost plus the signed profit, so the
		// balance change over the round trip equals the profit exactly.
		e.opts.Ledger.Credit(pos.EntryPrice*pos.Amount + profit)
	}
	e.setPosition(nil)

	trade := core.ClosedTrade{
		Timestamp: time.Now().UTC(),
		Symbol:    pos.Symbol,
		Side:      pos.Side,
		Amount:    pos.Amount,
		Price:     price,
		Profit:    profit,
	}
	if err := e.opts.Ledger.RecordClosedTrade(ctx, trade); err != nil {
		if errors.Is(err, core.ErrPersistenceFailure) {
			log.Error().Err(err).Msg("closed trade not persisted, statistics will be understated")
		} else {
			log.Error().Err(err).Msg("closed trade logging failed")
		}
	}
	log.Info().Str("side", string(pos.Side)).Float64("exit", price).
		Float64("profit", profit).Msg("position closed")
}

// orderSize converts the risked share of the balance into a base amount at
// the current price, recomputed fresh at every entry decision.
func orderSize(balance, price, riskPercent float64) float64 {
	if price <= 0 {
		return 0
	}
	return balance * riskPercent / 100 / price
}

func (e *Engine) balanceAt(ctx context.Context) (float64, error) {
	if e.opts.DryRun || e.opts.Venue == nil {
		return e.opts.Ledger.Balance(), nil
	}
	return e.opts.Venue.AccountBalance(ctx)
}

// Balance is the control-surface balance query.
func (e *Engine) Balance(ctx context.Context) (float64, error) {
	return e.balanceAt(ctx)
}

func (e *Engine) position() *core.Position {
	e.posMu.RLock()
	defer e.posMu.RUnlock()
	if e.pos == nil {
		return nil
	}
	p := *e.pos
	return &p
}

func (e *Engine) setPosition(p *core.Position) {
	e.posMu.Lock()
	defer e.posMu.Unlock()
	e.pos = p
}

// PositionStatus is the human-readable open-position summary.
func (e *Engine) PositionStatus() string {
	pos := e.position()
	if pos == nil {
		if e.opts.DryRun {
			return "No open position (simulated)."
		}
		return "No open position."
	}
	return "Open position:\n" + pos.String()
}
