package core

import (
	"fmt"
	"time"
)

type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Bar is one OHLCV candle. Bars of a series are ordered by strictly
// increasing timestamps, one per configured timeframe.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// IndicatorRow is a Bar enriched by the indicator pipeline. Derived fields
// stay nil until their lookback window is satisfied.
type IndicatorRow struct {
	Bar

	SMAShort        *float64
	SMALong         *float64
	VolumeIntensity *float64
	TrendLongBand   *float64
	TrendShortBand  *float64
}

// TradeSignal holds the boolean entry/exit flags derived from the latest
// IndicatorRow. At most one entry and one exit flag is true.
type TradeSignal struct {
	EnterLong  bool
	EnterShort bool
	ExitLong   bool
	ExitShort  bool
}

// Position is the single open position. The engine is its only writer.
type Position struct {
	ID         int64
	Symbol     string
	Side       Side
	Amount     float64
	EntryPrice float64
	OpenedAt   time.Time
}

func (p Position) String() string {
	return fmt.Sprintf("ID: %d, Symbol: %s, Side: %s, Amount: %.4f, Price: %.4f",
		p.ID, p.Symbol, p.Side, p.Amount, p.EntryPrice)
}

// ClosedTrade is the append-only record of a realized position.
type ClosedTrade struct {
	Timestamp time.Time
	Symbol    string
	Side      Side
	Amount    float64
	Price     float64
	Profit    float64
}

// Order is the execution-port record of a placed or cancelled market order.
type Order struct {
	ID        int64
	Symbol    string
	Side      Side
	Amount    float64
	Price     float64
	Timestamp time.Time
}
