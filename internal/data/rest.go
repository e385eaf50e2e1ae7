package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"autotrader/internal/core"
)

const defaultBaseURL = "https://api.binance.com"

// BinanceREST is the polling market data source: spot klines plus the
// ticker-price lookup. Transient failures surface as ErrDataUnavailable and
// are retried by the engine on its next tick.
type BinanceREST struct {
	baseURL string
	tf      string
	client  *http.Client
}

func NewBinanceREST(baseURL, tf string) *BinanceREST {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &BinanceREST{
		baseURL: baseURL,
		tf:      tf,
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

func (b *BinanceREST) FetchRecentBars(ctx context.Context, symbol string, limit int) ([]core.Bar, error) {
	if limit <= 0 {
		limit = 1
	}
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		b.baseURL, symbol, TFToBinance(b.tf), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: klines: %v", core.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: klines status %d", core.ErrDataUnavailable, resp.StatusCode)
	}
	var payload [][]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: klines decode: %v", core.ErrDataUnavailable, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty klines", core.ErrDataUnavailable)
	}
	bars := make([]core.Bar, 0, len(payload))
	for _, row := range payload {
		bar, err := ParseKlineRow(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrDataUnavailable, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (b *BinanceREST) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", b.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: ticker: %v", core.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: ticker status %d", core.ErrDataUnavailable, resp.StatusCode)
	}
	var payload struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: ticker decode: %v", core.ErrDataUnavailable, err)
	}
	price, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: bad ticker price %q", core.ErrDataUnavailable, payload.Price)
	}
	return price, nil
}

// ParseKlineRow converts one row of the Binance klines payload
// [openTime, open, high, low, close, volume, ...] into a Bar.
func ParseKlineRow(symbol string, row []any) (core.Bar, error) {
	if len(row) < 6 {
		return core.Bar{}, fmt.Errorf("kline row too short: %d fields", len(row))
	}
	return core.Bar{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(toInt64(row[0])).UTC(),
		Open:      toF64(row[1]),
		High:      toF64(row[2]),
		Low:       toF64(row[3]),
		Close:     toF64(row[4]),
		Volume:    toF64(row[5]),
	}, nil
}

func TFToBinance(tf string) string {
	switch tf {
	case "1m", "5m", "15m", "1h":
		return tf
	default:
		return "1m"
	}
}

// TFDuration is the bar interval of a timeframe, used as the tick default.
func TFDuration(tf string) time.Duration {
	switch tf {
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	default:
		return time.Minute
	}
}

func toF64(v any) float64 {
	switch t := v.(type) {
	case string:
		x, _ := strconv.ParseFloat(t, 64)
		return x
	case float64:
		return t
	default:
		x, _ := strconv.ParseFloat(fmt.Sprint(v), 64)
		return x
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case json.Number:
		i, _ := t.Int64()
		return i
	default:
		x, _ := strconv.ParseInt(fmt.Sprint(v), 10, 64)
		return x
	}
}
