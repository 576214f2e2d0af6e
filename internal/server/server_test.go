package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradehook/internal/broker"
	"tradehook/internal/dispatch"
	"tradehook/internal/order"
	"tradehook/internal/rules"
)

type stubAdapter struct{}

func (stubAdapter) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.RequireFromString("43500"), nil
}

func (stubAdapter) PlaceOrder(ctx context.Context, req order.Request) (broker.Placement, error) {
	return broker.Placement{OrderID: "42", Status: "NEW"}, nil
}

func (stubAdapter) Mode() broker.Mode { return broker.Sandbox }

func (stubAdapter) Limits() rules.Limits {
	return rules.Limits{
		MinNotional:       decimal.NewFromInt(10),
		QuantityPrecision: 8,
		QuoteSuffixes:     []string{"USDT"},
	}
}

func testHandler() http.Handler {
	router := dispatch.New(map[string]broker.Adapter{"BINANCE": stubAdapter{}}, zerolog.Nop())
	return NewHandler(router, zerolog.Nop())
}

func TestWebhookAcceptedOrder(t *testing.T) {
	srv := httptest.NewServer(testHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook", "application/json",
		strings.NewReader(`{"broker":"BINANCE","symbol":"BTCUSDT","side":"buy","quantity":0.001,"type":"MARKET"}`))
	if err != nil {
		t.Fatalf("POST returned error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var out dispatch.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !out.Success || out.OrderID != "42" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestWebhookRejectionStillAnswers200(t *testing.T) {
	srv := httptest.NewServer(testHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(`not json`))
	if err != nil {
		t.Fatalf("POST returned error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fire-and-forget sources must still get 200, got %d", resp.StatusCode)
	}
	var out dispatch.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.Success || out.Error != "ParseError" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(testHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET returned error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}
