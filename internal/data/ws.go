package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"autotrader/internal/core"
)

const wsBaseURL = "wss://stream.binance.com:9443/ws"

// WSFeed subscribes to the Binance kline stream and buffers closed bars.
// It implements the same pull-based MarketData port as the REST source: the
// engine keeps polling on its tick, the stream just keeps the buffer warm.
type WSFeed struct {
	symbol string
	url    string

	mu    sync.RWMutex
	bars  []core.Bar
	price float64
}

func NewWSFeed(symbol, tf string) *WSFeed {
	stream := fmt.Sprintf("%s/%s@kline_%s", wsBaseURL, strings.ToLower(symbol), TFToBinance(tf))
	return &WSFeed{symbol: symbol, url: stream}
}

// Run maintains the stream connection until the context is cancelled,
// reconnecting with a flat backoff on read or dial failures.
func (f *WSFeed) Run(ctx context.Context) error {
	for {
		if err := f.readLoop(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("stream", f.url).Msg("kline stream dropped, reconnecting")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (f *WSFeed) readLoop(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	log.Info().Str("stream", f.url).Msg("kline stream connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		bar, price, final, err := parseKlineEvent(f.symbol, raw)
		if err != nil {
			log.Debug().Err(err).Msg("skipping unparseable stream frame")
			continue
		}
		f.mu.Lock()
		f.price = price
		if final {
			f.bars = append(f.bars, bar)
			if len(f.bars) > 512 {
				f.bars = f.bars[len(f.bars)-512:]
			}
		}
		f.mu.Unlock()
	}
}

func (f *WSFeed) FetchRecentBars(_ context.Context, _ string, limit int) ([]core.Bar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.bars) == 0 {
		return nil, fmt.Errorf("%w: no closed bars from stream yet", core.ErrDataUnavailable)
	}
	if limit <= 0 || limit > len(f.bars) {
		limit = len(f.bars)
	}
	out := make([]core.Bar, limit)
	copy(out, f.bars[len(f.bars)-limit:])
	return out, nil
}

func (f *WSFeed) CurrentPrice(context.Context, string) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.price <= 0 {
		return 0, fmt.Errorf("%w: no stream price yet", core.ErrDataUnavailable)
	}
	return f.price, nil
}

type klineEvent struct {
	Event string `json:"e"`
	// EventTime absorbs "E"; without it encoding/json matches "E"
	// case-insensitively to the "e" field and fails on the number.
	EventTime int64 `json:"E"`
	Kline     struct {
		Start int64 `json:"t"`
		// End absorbs "T" so it cannot clobber Start via
		// case-insensitive tag matching.
		End    int64  `json:"T"`
		Open   string `json:"o"`
		High   string `json:"h"`
		Low    string `json:"l"`
		Close  string `json:"c"`
		Volume string `json:"v"`
		Final  bool   `json:"x"`
	} `json:"k"`
}

func parseKlineEvent(symbol string, raw []byte) (core.Bar, float64, bool, error) {
	var ev klineEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return core.Bar{}, 0, false, err
	}
	if ev.Event != "kline" {
		return core.Bar{}, 0, false, fmt.Errorf("unexpected event %q", ev.Event)
	}
	close, err := strconv.ParseFloat(ev.Kline.Close, 64)
	if err != nil {
		return core.Bar{}, 0, false, fmt.Errorf("bad close %q", ev.Kline.Close)
	}
	bar := core.Bar{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(ev.Kline.Start).UTC(),
		Open:      mustF(ev.Kline.Open),
		High:      mustF(ev.Kline.High),
		Low:       mustF(ev.Kline.Low),
		Close:     close,
		Volume:    mustF(ev.Kline.Volume),
	}
	return bar, close, ev.Kline.Final, nil
}

func mustF(s string) float64 {
	x, _ := strconv.ParseFloat(s, 64)
	return x
}
