package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/core"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBarsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	bars := []core.Bar{
		{Symbol: "RUNEUSDT", Timestamp: ts, Open: 4.1, High: 4.3, Low: 4.0, Close: 4.2, Volume: 1500},
		{Symbol: "RUNEUSDT", Timestamp: ts.Add(time.Minute), Open: 4.2, High: 4.4, Low: 4.1, Close: 4.3, Volume: 900},
	}
	require.NoError(t, s.AppendBars(ctx, bars))

	got, err := s.ReadBars(ctx, "RUNEUSDT")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, bars[0], got[0])
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestAppendBarsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bar := core.Bar{Symbol: "RUNEUSDT", Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Close: 4.2, Volume: 100}

	require.NoError(t, s.AppendBars(ctx, []core.Bar{bar}))
	require.NoError(t, s.AppendBars(ctx, []core.Bar{bar}))

	got, err := s.ReadBars(ctx, "RUNEUSDT")
	require.NoError(t, err)
	assert.Len(t, got, 1, "re-fetching the same bar must not duplicate it")
}

func TestReadBarsFiltersSymbol(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendBars(ctx, []core.Bar{
		{Symbol: "RUNEUSDT", Timestamp: ts, Close: 4.2},
		{Symbol: "BTCUSDT", Timestamp: ts, Close: 64000},
	}))

	got, err := s.ReadBars(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
}

func TestClosedTradesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	trades := []core.ClosedTrade{
		{Timestamp: time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), Symbol: "RUNEUSDT", Side: core.Long, Amount: 10, Price: 120, Profit: 200},
		{Timestamp: time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC), Symbol: "RUNEUSDT", Side: core.Short, Amount: 5, Price: 110, Profit: -50},
	}
	for _, tr := range trades {
		require.NoError(t, s.AppendClosedTrade(ctx, tr))
	}

	got, err := s.ReadClosedTrades(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, trades[0], got[0])
	assert.Equal(t, trades[1], got[1])
}

func TestEmptyReads(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bars, err := s.ReadBars(ctx, "RUNEUSDT")
	require.NoError(t, err)
	assert.Empty(t, bars)

	trades, err := s.ReadClosedTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
