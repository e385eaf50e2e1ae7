package core

import "context"

// MarketData supplies raw price bars and a current-price lookup.
// Implementations may fail transiently; callers retry on the next tick.
type MarketData interface {
	FetchRecentBars(ctx context.Context, symbol string, limit int) ([]Bar, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// Store durably records price bars and closed trades. Bars and trades are
// append-only; reads return series ordered by timestamp.
type Store interface {
	AppendBars(ctx context.Context, bars []Bar) error
	ReadBars(ctx context.Context, symbol string) ([]Bar, error)
	AppendClosedTrade(ctx context.Context, trade ClosedTrade) error
	ReadClosedTrades(ctx context.Context) ([]ClosedTrade, error)
}

// ExecutionPort places and cancels market orders at the venue.
type ExecutionPort interface {
	PlaceOrder(ctx context.Context, side Side, amount float64) (Order, error)
	CancelOpenOrders(ctx context.Context, side Side) ([]Order, error)
}
