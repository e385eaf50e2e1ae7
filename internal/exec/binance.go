package exec

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"autotrader/internal/core"
)

// Binance places live spot market orders over signed REST.
type Binance struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	symbol     string
	quoteAsset string
	client     *http.Client
	now        func() time.Time
}

func NewBinance(baseURL, apiKey, apiSecret, symbol, quoteAsset string) *Binance {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &Binance{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		symbol:     symbol,
		quoteAsset: quoteAsset,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

func (b *Binance) PlaceOrder(ctx context.Context, side core.Side, amount float64) (core.Order, error) {
	params := url.Values{}
	params.Set("symbol", b.symbol)
	params.Set("side", orderSide(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(amount, 'f', -1, 64))

	var resp struct {
		OrderID      int64  `json:"orderId"`
		TransactTime int64  `json:"transactTime"`
		ExecutedQty  string `json:"executedQty"`
		Fills        []struct {
			Price string `json:"price"`
			Qty   string `json:"qty"`
		} `json:"fills"`
	}
	if err := b.signedCall(ctx, http.MethodPost, "/api/v3/order", params, &resp); err != nil {
		return core.Order{}, err
	}

	return core.Order{
		ID:        resp.OrderID,
		Symbol:    b.symbol,
		Side:      side,
		Amount:    amount,
		Price:     avgFillPrice(resp.Fills),
		Timestamp: time.UnixMilli(resp.TransactTime).UTC(),
	}, nil
}

func (b *Binance) CancelOpenOrders(ctx context.Context, side core.Side) ([]core.Order, error) {
	params := url.Values{}
	params.Set("symbol", b.symbol)

	var open []struct {
		OrderID int64  `json:"orderId"`
		Side    string `json:"side"`
		OrigQty string `json:"origQty"`
		Price   string `json:"price"`
		Time    int64  `json:"time"`
	}
	if err := b.signedCall(ctx, http.MethodGet, "/api/v3/openOrders", params, &open); err != nil {
		return nil, err
	}

	var cancelled []core.Order
	for _, o := range open {
		if o.Side != orderSide(side) {
			continue
		}
		cancel := url.Values{}
		cancel.Set("symbol", b.symbol)
		cancel.Set("orderId", strconv.FormatInt(o.OrderID, 10))
		if err := b.signedCall(ctx, http.MethodDelete, "/api/v3/order", cancel, nil); err != nil {
			return cancelled, err
		}
		qty, _ := strconv.ParseFloat(o.OrigQty, 64)
		price, _ := strconv.ParseFloat(o.Price, 64)
		cancelled = append(cancelled, core.Order{
			ID:        o.OrderID,
			Symbol:    b.symbol,
			Side:      side,
			Amount:    qty,
			Price:     price,
			Timestamp: time.UnixMilli(o.Time).UTC(),
		})
	}
	return cancelled, nil
}

// AccountBalance returns the free balance of the configured quote asset.
func (b *Binance) AccountBalance(ctx context.Context) (float64, error) {
	var resp struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := b.signedCall(ctx, http.MethodGet, "/api/v3/account", url.Values{}, &resp); err != nil {
		return 0, err
	}
	for _, bal := range resp.Balances {
		if bal.Asset == b.quoteAsset {
			free, err := strconv.ParseFloat(bal.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: bad balance %q", core.ErrExecutionFailure, bal.Free)
			}
			return free, nil
		}
	}
	return 0, fmt.Errorf("%w: %s balance not found", core.ErrExecutionFailure, b.quoteAsset)
}

func (b *Binance) signedCall(ctx context.Context, method, path string, params url.Values, out any) error {
	params.Set("timestamp", strconv.FormatInt(b.now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + b.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", core.ErrExecutionFailure, method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", core.ErrExecutionFailure, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s %s: status %d: %s",
			core.ErrExecutionFailure, method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", core.ErrExecutionFailure, path, err)
	}
	return nil
}

func (b *Binance) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func orderSide(side core.Side) string {
	if side == core.Long {
		return "BUY"
	}
	return "SELL"
}

func avgFillPrice(fills []struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}) float64 {
	var notional, qty float64
	for _, f := range fills {
		p, _ := strconv.ParseFloat(f.Price, 64)
		q, _ := strconv.ParseFloat(f.Qty, 64)
		notional += p * q
		qty += q
	}
	if qty == 0 {
		return 0
	}
	return notional / qty
}
