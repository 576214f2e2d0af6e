// Package paper implements a simulated adapter that fills orders against an
// in-memory cash/position account. It needs no credentials and never touches
// a real backend.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradehook/internal/broker"
	"tradehook/internal/order"
	"tradehook/internal/rules"
)

// PriceSource resolves reference prices for simulated fills.
type PriceSource interface {
	Price(symbol string) (decimal.Decimal, bool)
}

type position struct {
	Qty     decimal.Decimal
	AvgCost decimal.Decimal
}

// Adapter tracks virtual cash and per-symbol positions while filling orders
// at the reference price.
type Adapter struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	positions map[string]position
	nextID    int
	limits    rules.Limits
	prices    PriceSource
	log       zerolog.Logger
}

// New constructs an adapter with the given starting cash.
func New(startingCash decimal.Decimal, limits rules.Limits, prices PriceSource, log zerolog.Logger) *Adapter {
	return &Adapter{
		cash:      startingCash,
		positions: make(map[string]position),
		nextID:    1,
		limits:    limits,
		prices:    prices,
		log:       log,
	}
}

// Mode always reports sandbox.
func (a *Adapter) Mode() broker.Mode { return broker.Sandbox }

// Limits exposes the configured exchange constraints.
func (a *Adapter) Limits() rules.Limits { return a.limits }

// CurrentPrice resolves the reference price from the attached source.
func (a *Adapter) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if a.prices != nil {
		if px, ok := a.prices.Price(symbol); ok {
			return px, nil
		}
	}
	return decimal.Decimal{}, &broker.Error{Kind: broker.KindPriceUnavailable, Detail: "no reference price for symbol"}
}

// PlaceOrder fills immediately: market orders at the reference price, limit
// orders at their limit price. Buys require cash; sells require position.
func (a *Adapter) PlaceOrder(ctx context.Context, req order.Request) (broker.Placement, error) {
	px := req.Price
	if req.Kind == order.Market {
		var err error
		px, err = a.CurrentPrice(ctx, req.Symbol)
		if err != nil {
			return broker.Placement{}, err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	notional := req.Quantity.Mul(px)
	state := a.positions[req.Symbol]

	switch req.Side {
	case order.Buy:
		if notional.GreaterThan(a.cash) {
			return broker.Placement{}, &broker.Error{Kind: broker.KindInsufficientBalance, Detail: "insufficient simulated cash"}
		}
		newQty := state.Qty.Add(req.Quantity)
		newAvg := px
		if state.Qty.IsPositive() {
			newAvg = state.AvgCost.Mul(state.Qty).Add(notional).Div(newQty)
		}
		a.cash = a.cash.Sub(notional)
		a.positions[req.Symbol] = position{Qty: newQty, AvgCost: newAvg}

	case order.Sell:
		if state.Qty.LessThan(req.Quantity) {
			return broker.Placement{}, &broker.Error{Kind: broker.KindInsufficientBalance, Detail: "insufficient simulated position"}
		}
		a.cash = a.cash.Add(notional)
		newQty := state.Qty.Sub(req.Quantity)
		if newQty.IsZero() {
			delete(a.positions, req.Symbol)
		} else {
			a.positions[req.Symbol] = position{Qty: newQty, AvgCost: state.AvgCost}
		}

	default:
		return broker.Placement{}, &broker.Error{Kind: broker.KindExecutionFailed, Detail: "unknown order side"}
	}

	id := fmt.Sprintf("PAPER-%06d", a.nextID)
	a.nextID++

	a.log.Info().
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("qty", req.Quantity.String()).
		Str("px", px.String()).
		Str("orderId", id).
		Msg("paper fill")
	return broker.Placement{OrderID: id, Status: "FILLED"}, nil
}

// Cash returns the current simulated balance.
func (a *Adapter) Cash() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Position returns the current quantity held for a symbol.
func (a *Adapter) Position(symbol string) decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Qty
}
