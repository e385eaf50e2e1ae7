package data

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"autotrader/internal/core"
)

// RandomWalk is an offline market data source for dry runs without network
// access. Each FetchRecentBars call advances the walk by one bar.
type RandomWalk struct {
	symbol string
	tf     string

	mu    sync.Mutex
	rng   *rand.Rand
	ts    time.Time
	price float64
	vol   float64
}

func NewRandomWalk(symbol, tf string, startPrice, vol float64, seed int64) *RandomWalk {
	return &RandomWalk{
		symbol: symbol,
		tf:     tf,
		rng:    rand.New(rand.NewSource(seed)),
		ts:     time.Now().UTC().Truncate(time.Minute),
		price:  startPrice,
		vol:    vol,
	}
}

func (r *RandomWalk) FetchRecentBars(_ context.Context, _ string, limit int) ([]core.Bar, error) {
	if limit <= 0 {
		limit = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bars := make([]core.Bar, 0, limit)
	for i := 0; i < limit; i++ {
		bars = append(bars, r.next())
	}
	return bars, nil
}

func (r *RandomWalk) CurrentPrice(context.Context, string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.price, nil
}

func (r *RandomWalk) next() core.Bar {
	open := r.price
	ret := (r.rng.Float64() - 0.5) * 2.0 * r.vol
	close := open * (1.0 + ret)
	high := maxf(open, close) * (1.0 + r.rng.Float64()*r.vol*0.5)
	low := minf(open, close) * (1.0 - r.rng.Float64()*r.vol*0.5)
	vol := 10_000 + r.rng.Float64()*5_000

	bar := core.Bar{
		Symbol:    r.symbol,
		Timestamp: r.ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    vol,
	}
	r.price = close
	r.ts = r.ts.Add(TFDuration(r.tf))
	return bar
}

func maxf(a, b float64) float64 {
	if a < b {
		return b
	}
	return a
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
