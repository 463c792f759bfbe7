package exchange

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

	"github.com/rs/zerolog"

	"flowbot/internal/execution"
	"flowbot/internal/market"
	"flowbot/internal/metrics"
)

const (
	mainnetRESTURL = "https://fapi.binance.com"
	testnetRESTURL = "https://testnet.binancefuture.com"
)

// Client is the signed REST client for account sync and order placement.
// It implements execution.Venue.
type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *http.Client
	log       zerolog.Logger
}

// NewClient builds a client against mainnet or testnet.
func NewClient(apiKey, apiSecret string, testnet bool, log zerolog.Logger) *Client {
	base := mainnetRESTURL
	if testnet {
		base = testnetRESTURL
	}
	return &Client{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   base,
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) signedRequest(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type balanceEntry struct {
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

type positionEntry struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
}

// Sync fetches the USDT wallet balance and open positions for the symbol
// and writes them into the market state. On failure the state keeps its
// last-known values.
func (c *Client) Sync(ctx context.Context, symbol string, state *market.State) error {
	var balances []balanceEntry
	if err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/balance", nil, &balances); err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	var balance float64
	for _, b := range balances {
		if b.Asset == "USDT" {
			balance, _ = strconv.ParseFloat(b.Balance, 64)
			break
		}
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	var entries []positionEntry
	if err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, &entries); err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	var positions []market.Position
	for _, e := range entries {
		qty, _ := strconv.ParseFloat(e.PositionAmt, 64)
		if qty == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(e.EntryPrice, 64)
		pnl, _ := strconv.ParseFloat(e.UnRealizedProfit, 64)
		positions = append(positions, market.Position{
			Symbol:        e.Symbol,
			Quantity:      qty,
			EntryPrice:    entry,
			UnrealizedPnL: pnl,
		})
	}

	state.SetAccount(balance, positions)
	metrics.AccountBalance.Set(balance)
	c.log.Debug().Float64("balance", balance).Int("positions", len(positions)).Msg("account synced")
	return nil
}

// SetLeverage adjusts the symbol's leverage before entering.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	return c.signedRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params, nil)
}

type orderResponse struct {
	OrderID     int64  `json:"orderId"`
	ExecutedQty string `json:"executedQty"`
	AvgPrice    string `json:"avgPrice"`
}

// PlaceOrder submits one order and returns the acknowledgement.
func (c *Client) PlaceOrder(ctx context.Context, req execution.OrderRequest) (execution.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', 6, 64))
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}
	if req.StopPrice > 0 {
		params.Set("stopPrice", strconv.FormatFloat(req.StopPrice, 'f', 2, 64))
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}

	var resp orderResponse
	if err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params, &resp); err != nil {
		return execution.OrderResult{}, err
	}
	executed, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	return execution.OrderResult{
		OrderID:     resp.OrderID,
		ExecutedQty: executed,
		AvgPrice:    avg,
	}, nil
}
