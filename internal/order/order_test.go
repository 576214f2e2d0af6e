package order

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseCanonicalizes(t *testing.T) {
	raw := []byte(`{"broker":"binance","symbol":"btcusdt","side":"buy","quantity":0.001,"type":"market","extra":"ignored"}`)
	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if req.Broker != "BINANCE" || req.Symbol != "BTCUSDT" {
		t.Fatalf("expected uppercase broker/symbol, got %s %s", req.Broker, req.Symbol)
	}
	if req.Side != Buy || req.Kind != Market {
		t.Fatalf("expected BUY MARKET, got %s %s", req.Side, req.Kind)
	}
	if !req.Quantity.Equal(decimal.RequireFromString("0.001")) {
		t.Fatalf("unexpected quantity: %s", req.Quantity)
	}
}

func TestParseDefaultsToMarket(t *testing.T) {
	req, err := Parse([]byte(`{"broker":"PAPER","symbol":"ETHUSDT","side":"SELL","quantity":1}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if req.Kind != Market {
		t.Fatalf("expected MARKET default, got %s", req.Kind)
	}
}

func TestParseLimitWithoutPrice(t *testing.T) {
	// Missing price on a LIMIT order is a rule-level rejection, not a parse
	// failure; Parse returns a zero price.
	req, err := Parse([]byte(`{"broker":"BINANCE","symbol":"ETHUSDT","side":"buy","quantity":0.1,"type":"LIMIT"}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !req.Price.IsZero() {
		t.Fatalf("expected zero price, got %s", req.Price)
	}
}

func TestParseStructuralFailures(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"malformed", `{"broker":`},
		{"missing broker", `{"symbol":"BTCUSDT","side":"buy","quantity":1}`},
		{"missing symbol", `{"broker":"BINANCE","side":"buy","quantity":1}`},
		{"missing side", `{"broker":"BINANCE","symbol":"BTCUSDT","quantity":1}`},
		{"missing quantity", `{"broker":"BINANCE","symbol":"BTCUSDT","side":"buy"}`},
		{"bad side", `{"broker":"BINANCE","symbol":"BTCUSDT","side":"hold","quantity":1}`},
		{"bad kind", `{"broker":"BINANCE","symbol":"BTCUSDT","side":"buy","quantity":1,"type":"STOP"}`},
		{"zero quantity", `{"broker":"BINANCE","symbol":"BTCUSDT","side":"buy","quantity":0}`},
		{"negative quantity", `{"broker":"BINANCE","symbol":"BTCUSDT","side":"buy","quantity":-1}`},
		{"wrong quantity type", `{"broker":"BINANCE","symbol":"BTCUSDT","side":"buy","quantity":"abc"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			if err == nil {
				t.Fatalf("expected parse error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	in := []byte(`{"broker":"BINANCE","symbol":"BTCUSDT","side":"BUY","quantity":0.001,"type":"LIMIT","price":43500.5,"client_id":"tv-42"}`)
	req, err := Parse(in)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	out, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse returned error: %v", err)
	}

	if again.Broker != req.Broker || again.Symbol != req.Symbol || again.Side != req.Side || again.Kind != req.Kind {
		t.Fatalf("round trip changed identity fields: %+v vs %+v", again, req)
	}
	if !again.Quantity.Equal(req.Quantity) || !again.Price.Equal(req.Price) {
		t.Fatalf("round trip changed numeric fields: %+v vs %+v", again, req)
	}
	if again.ClientID != "tv-42" {
		t.Fatalf("client id lost in round trip: %q", again.ClientID)
	}
}
