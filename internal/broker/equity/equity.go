// Package equity implements the adapter for an equity brokerage REST gateway
// (Flattrade-style). Symbols are gated by an allow-list rather than quote
// suffixes, and auth is a session token exchanged from the user/key pair.
package equity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradehook/internal/broker"
	"tradehook/internal/order"
	"tradehook/internal/rules"
)

// Config carries the static configuration for one gateway binding.
type Config struct {
	BaseURL string
	UserID  string
	APIKey  string
	Limits  rules.Limits
}

// Client talks to the equity gateway. The session token is fetched lazily on
// first use and cached for the life of the process.
type Client struct {
	http    *http.Client
	baseURL string
	userID  string
	apiKey  string
	limits  rules.Limits
	log     zerolog.Logger

	mu    sync.Mutex
	token string
}

// New constructs a Client for the configured gateway.
func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: broker.PlaceTimeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		userID:  cfg.UserID,
		apiKey:  cfg.APIKey,
		limits:  cfg.Limits,
		log:     log,
	}
}

// Mode is always live; the gateway has no sandbox environment.
func (c *Client) Mode() broker.Mode { return broker.Live }

// Limits exposes the allow-list and notional constraints.
func (c *Client) Limits() rules.Limits { return c.limits }

func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{"user_id": c.userID, "api_key": c.apiKey})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/session", bytes.NewReader(body))
	if err != nil {
		return "", &broker.Error{Kind: broker.KindExecutionFailed, Detail: "building session request failed"}
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &broker.Error{Kind: broker.KindUnauthorized, Detail: "gateway issued no session token"}
	}
	c.token = out.Token
	return c.token, nil
}

// CurrentPrice fetches the last traded price for a symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, broker.PriceTimeout)
	defer cancel()

	token, err := c.session(ctx)
	if err != nil {
		return decimal.Decimal{}, &broker.Error{Kind: broker.KindPriceUnavailable, Detail: "quote lookup failed"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/quote?symbol="+url.QueryEscape(symbol), nil)
	if err != nil {
		return decimal.Decimal{}, &broker.Error{Kind: broker.KindPriceUnavailable, Detail: "quote lookup failed"}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var out struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := c.do(req, &out); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("quote lookup failed")
		return decimal.Decimal{}, &broker.Error{Kind: broker.KindPriceUnavailable, Detail: "quote lookup failed"}
	}
	if !out.Price.IsPositive() {
		return decimal.Decimal{}, &broker.Error{Kind: broker.KindPriceUnavailable, Detail: "gateway returned no price"}
	}
	return out.Price, nil
}

// PlaceOrder submits the order to the gateway.
func (c *Client) PlaceOrder(ctx context.Context, req order.Request) (broker.Placement, error) {
	ctx, cancel := context.WithTimeout(ctx, broker.PlaceTimeout)
	defer cancel()

	token, err := c.session(ctx)
	if err != nil {
		return broker.Placement{}, err
	}

	payload := map[string]string{
		"symbol":   req.Symbol,
		"side":     string(req.Side),
		"type":     string(req.Kind),
		"quantity": req.Quantity.StringFixed(c.limits.QuantityPrecision),
	}
	if req.Kind == order.Limit {
		payload["price"] = req.Price.String()
	}
	if req.ClientID != "" {
		payload["client_ref"] = req.ClientID
	}
	body, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return broker.Placement{}, &broker.Error{Kind: broker.KindExecutionFailed, Detail: "building order request failed"}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	var out struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return broker.Placement{}, err
	}

	c.log.Info().Str("symbol", req.Symbol).Str("side", string(req.Side)).Str("orderId", out.OrderID).Msg("equity order placed")
	return broker.Placement{OrderID: out.OrderID, Status: out.Status}, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &broker.Error{Kind: broker.KindExecutionFailed, Detail: "gateway unreachable or timed out"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &broker.Error{Kind: broker.KindExecutionFailed, Detail: "reading gateway response failed"}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &broker.Error{Kind: broker.KindUnauthorized, Detail: "gateway rejected credentials"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &broker.Error{Kind: broker.KindRateLimited, Detail: "gateway rate limit hit"}
	default:
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		detail := strings.TrimSpace(apiErr.Message)
		if strings.Contains(strings.ToLower(detail), "insufficient") {
			return &broker.Error{Kind: broker.KindInsufficientBalance, Detail: "insufficient funds"}
		}
		if detail == "" {
			detail = "gateway returned an error"
		}
		return &broker.Error{Kind: broker.KindExecutionFailed, Detail: detail}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &broker.Error{Kind: broker.KindExecutionFailed, Detail: "decoding gateway response failed"}
	}
	return nil
}
