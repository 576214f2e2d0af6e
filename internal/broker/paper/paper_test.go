package paper

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradehook/internal/broker"
	"tradehook/internal/order"
	"tradehook/internal/rules"
)

type prices map[string]string

func (p prices) Price(symbol string) (decimal.Decimal, bool) {
	s, ok := p[symbol]
	if !ok {
		return decimal.Decimal{}, false
	}
	return decimal.RequireFromString(s), true
}

func newTestAdapter(cash string) *Adapter {
	limits := rules.Limits{
		MinNotional:       decimal.NewFromInt(10),
		QuantityPrecision: 8,
		QuoteSuffixes:     []string{"USDT"},
	}
	return New(decimal.RequireFromString(cash), limits, prices{"BTCUSDT": "40000"}, zerolog.Nop())
}

func marketOrder(side order.Side, qty string) order.Request {
	return order.Request{
		Broker:   "PAPER",
		Symbol:   "BTCUSDT",
		Side:     side,
		Quantity: decimal.RequireFromString(qty),
		Kind:     order.Market,
	}
}

func TestBuyThenSellRoundTripsCash(t *testing.T) {
	a := newTestAdapter("1000")

	fill, err := a.PlaceOrder(context.Background(), marketOrder(order.Buy, "0.01"))
	if err != nil {
		t.Fatalf("buy returned error: %v", err)
	}
	if fill.Status != "FILLED" || fill.OrderID == "" {
		t.Fatalf("unexpected fill: %+v", fill)
	}
	if !a.Cash().Equal(decimal.RequireFromString("600")) {
		t.Fatalf("expected cash 600 after buy, got %s", a.Cash())
	}
	if !a.Position("BTCUSDT").Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("unexpected position: %s", a.Position("BTCUSDT"))
	}

	if _, err := a.PlaceOrder(context.Background(), marketOrder(order.Sell, "0.01")); err != nil {
		t.Fatalf("sell returned error: %v", err)
	}
	if !a.Cash().Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("expected cash restored, got %s", a.Cash())
	}
	if !a.Position("BTCUSDT").IsZero() {
		t.Fatalf("expected flat position, got %s", a.Position("BTCUSDT"))
	}
}

func TestBuyWithoutCashFails(t *testing.T) {
	a := newTestAdapter("100")
	_, err := a.PlaceOrder(context.Background(), marketOrder(order.Buy, "0.01"))
	if broker.Classify(err) != broker.KindInsufficientBalance {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
}

func TestSellWithoutPositionFails(t *testing.T) {
	a := newTestAdapter("1000")
	_, err := a.PlaceOrder(context.Background(), marketOrder(order.Sell, "0.01"))
	if broker.Classify(err) != broker.KindInsufficientBalance {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
}

func TestLimitOrderFillsAtLimitPrice(t *testing.T) {
	a := newTestAdapter("1000")
	req := marketOrder(order.Buy, "0.01")
	req.Kind = order.Limit
	req.Price = decimal.RequireFromString("30000")

	if _, err := a.PlaceOrder(context.Background(), req); err != nil {
		t.Fatalf("limit buy returned error: %v", err)
	}
	if !a.Cash().Equal(decimal.RequireFromString("700")) {
		t.Fatalf("expected fill at limit price, cash %s", a.Cash())
	}
}

func TestUnknownSymbolIsPriceUnavailable(t *testing.T) {
	a := newTestAdapter("1000")
	req := marketOrder(order.Buy, "1")
	req.Symbol = "DOGEUSDT"
	_, err := a.PlaceOrder(context.Background(), req)
	if broker.Classify(err) != broker.KindPriceUnavailable {
		t.Fatalf("expected PriceUnavailable, got %v", err)
	}
}

func TestOrderIDsAreSequential(t *testing.T) {
	a := newTestAdapter("10000")
	first, _ := a.PlaceOrder(context.Background(), marketOrder(order.Buy, "0.001"))
	second, _ := a.PlaceOrder(context.Background(), marketOrder(order.Buy, "0.001"))
	if first.OrderID == second.OrderID {
		t.Fatalf("order ids must be unique: %s", first.OrderID)
	}
}
