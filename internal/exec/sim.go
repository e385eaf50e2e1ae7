package exec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"autotrader/internal/core"
)

// PriceSource is the current-price lookup the simulator fills against.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// Simulator is the dry-run execution port. Orders fill immediately at the
// source's current price and are tracked until cancelled.
type Simulator struct {
	symbol string
	prices PriceSource

	mu     sync.Mutex
	nextID int64
	open   []core.Order
}

func NewSimulator(symbol string, prices PriceSource) *Simulator {
	return &Simulator{symbol: symbol, prices: prices}
}

func (s *Simulator) PlaceOrder(ctx context.Context, side core.Side, amount float64) (core.Order, error) {
	price, err := s.prices.CurrentPrice(ctx, s.symbol)
	if err != nil {
		return core.Order{}, fmt.Errorf("%w: simulated fill price: %v", core.ErrExecutionFailure, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	order := core.Order{
		ID:        s.nextID,
		Symbol:    s.symbol,
		Side:      side,
		Amount:    amount,
		Price:     price,
		Timestamp: time.Now().UTC(),
	}
	s.open = append(s.open, order)
	log.Info().Int64("id", order.ID).Str("side", string(side)).
		Float64("amount", amount).Float64("price", price).Msg("simulated order")
	return order, nil
}

func (s *Simulator) CancelOpenOrders(_ context.Context, side core.Side) ([]core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cancelled, remaining []core.Order
	for _, o := range s.open {
		if o.Side == side {
			cancelled = append(cancelled, o)
		} else {
			remaining = append(remaining, o)
		}
	}
	s.open = remaining
	return cancelled, nil
}

// OpenOrders returns a snapshot of the simulated open orders.
func (s *Simulator) OpenOrders() []core.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Order, len(s.open))
	copy(out, s.open)
	return out
}
