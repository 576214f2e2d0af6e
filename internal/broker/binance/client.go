// Package binance implements the Binance USD-M futures adapter. The live and
// testnet variants are separate Client instances that differ only in the
// base URL and credential pair bound at construction.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradehook/internal/broker"
	"tradehook/internal/order"
	"tradehook/internal/rules"
)

const (
	MainnetURL = "https://fapi.binance.com"
	TestnetURL = "https://testnet.binancefuture.com"

	recvWindow = "5000"
)

// PriceSource is an optional cache consulted before the REST mark-price
// lookup, typically backed by the websocket feed.
type PriceSource interface {
	Price(symbol string) (decimal.Decimal, bool)
}

// Config carries the per-variant static configuration.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	// BaseURL overrides the endpoint derived from Testnet (used in tests).
	BaseURL string
	// SquareOff closes an opposite open position before placing the new
	// order, mirroring the futures entry-flip behavior.
	SquareOff bool
	Limits    rules.Limits
	Prices    PriceSource
}

// Client is a signed REST client for one Binance environment.
type Client struct {
	http      *http.Client
	baseURL   string
	signer    *Signer
	testnet   bool
	squareOff bool
	limits    rules.Limits
	prices    PriceSource
	log       zerolog.Logger
}

// New constructs a Client bound to one environment and credential pair.
func New(cfg Config, log zerolog.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = MainnetURL
		if cfg.Testnet {
			base = TestnetURL
		}
	}
	return &Client{
		http:      &http.Client{Timeout: broker.PlaceTimeout},
		baseURL:   strings.TrimSuffix(base, "/"),
		signer:    NewSigner(cfg.APIKey, cfg.APISecret),
		testnet:   cfg.Testnet,
		squareOff: cfg.SquareOff,
		limits:    cfg.Limits,
		prices:    cfg.Prices,
		log:       log,
	}
}

// Mode reports sandbox for the testnet variant.
func (c *Client) Mode() broker.Mode {
	if c.testnet {
		return broker.Sandbox
	}
	return broker.Live
}

// Limits exposes the exchange constraints for the rules pipeline.
func (c *Client) Limits() rules.Limits { return c.limits }

// CurrentPrice returns the mark price for a symbol, preferring the streaming
// cache when one is attached and fresh.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if c.prices != nil {
		if px, ok := c.prices.Price(symbol); ok {
			return px, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, broker.PriceTimeout)
	defer cancel()

	var out struct {
		MarkPrice decimal.Decimal `json:"markPrice"`
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	if err := c.public(ctx, "/fapi/v1/premiumIndex", q, &out); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("mark price lookup failed")
		return decimal.Decimal{}, &broker.Error{Kind: broker.KindPriceUnavailable, Detail: "mark price lookup failed"}
	}
	if !out.MarkPrice.IsPositive() {
		return decimal.Decimal{}, &broker.Error{Kind: broker.KindPriceUnavailable, Detail: "backend returned no price"}
	}
	return out.MarkPrice, nil
}

type orderResponse struct {
	OrderID json.Number `json:"orderId"`
	Status  string      `json:"status"`
}

// PlaceOrder submits a futures order, optionally squaring off an opposite
// position first.
func (c *Client) PlaceOrder(ctx context.Context, req order.Request) (broker.Placement, error) {
	ctx, cancel := context.WithTimeout(ctx, broker.PlaceTimeout)
	defer cancel()

	if c.squareOff {
		if err := c.closeOpposite(ctx, req); err != nil {
			return broker.Placement{}, err
		}
	}

	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("side", string(req.Side))
	q.Set("type", string(req.Kind))
	q.Set("quantity", req.Quantity.StringFixed(c.limits.QuantityPrecision))
	if req.Kind == order.Limit {
		q.Set("price", req.Price.String())
		q.Set("timeInForce", "GTC")
	}
	if req.ClientID != "" {
		q.Set("newClientOrderId", req.ClientID)
	}

	var out orderResponse
	if err := c.signed(ctx, http.MethodPost, "/fapi/v1/order", q, &out); err != nil {
		return broker.Placement{}, err
	}

	c.log.Info().
		Str("mode", string(c.Mode())).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("orderId", out.OrderID.String()).
		Msg("order placed")
	return broker.Placement{OrderID: out.OrderID.String(), Status: out.Status}, nil
}

type positionRisk struct {
	Symbol      string          `json:"symbol"`
	PositionAmt decimal.Decimal `json:"positionAmt"`
}

// closeOpposite fetches the current net position and, when it opposes the
// incoming side, closes it with a reduce-only market order before the new
// entry.
func (c *Client) closeOpposite(ctx context.Context, req order.Request) error {
	q := url.Values{}
	q.Set("symbol", req.Symbol)

	var positions []positionRisk
	if err := c.signed(ctx, http.MethodGet, "/fapi/v2/positionRisk", q, &positions); err != nil {
		return err
	}

	var amt decimal.Decimal
	for _, p := range positions {
		if p.Symbol == req.Symbol {
			amt = p.PositionAmt
			break
		}
	}

	opposite := (req.Side == order.Buy && amt.IsNegative()) ||
		(req.Side == order.Sell && amt.IsPositive())
	if !opposite {
		return nil
	}

	closeQty := amt.Abs()
	c.log.Info().Str("symbol", req.Symbol).Str("qty", closeQty.String()).Msg("closing opposite position")

	cq := url.Values{}
	cq.Set("symbol", req.Symbol)
	cq.Set("side", string(req.Side))
	cq.Set("type", string(order.Market))
	cq.Set("quantity", closeQty.StringFixed(c.limits.QuantityPrecision))
	cq.Set("reduceOnly", "true")

	var out orderResponse
	return c.signed(ctx, http.MethodPost, "/fapi/v1/order", cq, &out)
}

func (c *Client) public(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) signed(ctx context.Context, method, path string, q url.Values, out any) error {
	q.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	q.Set("recvWindow", recvWindow)
	encoded := q.Encode()
	encoded += "&signature=" + c.signer.Sign(encoded)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+encoded, nil)
	if err != nil {
		return &broker.Error{Kind: broker.KindExecutionFailed, Detail: "building backend request failed"}
	}
	req.Header.Set("X-MBX-APIKEY", c.signer.APIKey())
	return c.do(req, out)
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &broker.Error{Kind: broker.KindExecutionFailed, Detail: "backend unreachable or timed out"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &broker.Error{Kind: broker.KindExecutionFailed, Detail: "reading backend response failed"}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		return mapAPIError(resp.StatusCode, apiErr)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &broker.Error{Kind: broker.KindExecutionFailed, Detail: "decoding backend response failed"}
	}
	return nil
}

// mapAPIError folds Binance status/error codes into the shared taxonomy.
// Backend message text is forwarded only for generic execution failures; the
// other kinds carry fixed credential-free detail.
func mapAPIError(status int, e apiError) *broker.Error {
	switch {
	case status == http.StatusTooManyRequests || status == 418 || e.Code == -1003:
		return &broker.Error{Kind: broker.KindRateLimited, Detail: "backend rate limit hit"}
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		e.Code == -2014 || e.Code == -2015 || e.Code == -1022:
		return &broker.Error{Kind: broker.KindUnauthorized, Detail: "backend rejected credentials"}
	case e.Code == -2010 && strings.Contains(strings.ToLower(e.Msg), "balance"),
		e.Code == -2018, e.Code == -2019:
		return &broker.Error{Kind: broker.KindInsufficientBalance, Detail: "insufficient balance or margin"}
	default:
		detail := sanitize(e.Msg)
		if detail == "" {
			detail = fmt.Sprintf("backend returned status %d", status)
		}
		return &broker.Error{Kind: broker.KindExecutionFailed, Detail: detail}
	}
}

func sanitize(msg string) string {
	msg = strings.TrimSpace(msg)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
