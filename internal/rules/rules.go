// Package rules implements the ordered validation pipeline run between
// parsing and dispatch. Every rule is a pure predicate over the request plus
// context; the pipeline short-circuits on the first failure.
package rules

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"tradehook/internal/order"
)

// Reason is a rejection code from the fixed taxonomy surfaced to callers.
type Reason string

const (
	ReasonParseError               Reason = "ParseError"
	ReasonInvalidSymbol            Reason = "InvalidSymbol"
	ReasonInvalidQuantityPrecision Reason = "InvalidQuantityPrecision"
	ReasonNotionalTooSmall         Reason = "NotionalTooSmall"
	ReasonMissingOrInvalidPrice    Reason = "MissingOrInvalidPrice"
	ReasonUnsupportedBroker        Reason = "UnsupportedBroker"
	ReasonPriceUnavailable         Reason = "PriceUnavailable"
)

// Limits carries the per-broker exchange constraints the pipeline enforces.
type Limits struct {
	MinNotional       decimal.Decimal
	QuantityPrecision int32
	// QuoteSuffixes gates crypto symbols (e.g. USDT/USDC/BUSD).
	QuoteSuffixes []string
	// AllowedSymbols, when set, replaces the suffix check with an equity
	// allow-list.
	AllowedSymbols []string
}

// PriceFunc resolves the current reference price for a symbol. A failure is
// treated as a rule failure, never skipped.
type PriceFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

// Outcome is the result of running the pipeline: exactly one of Accepted or
// Rejected holds. On acceptance Request carries the normalized quantity.
type Outcome struct {
	Accepted bool
	Reason   Reason
	Detail   string
	Request  order.Request
}

func rejected(reason Reason, detail string) Outcome {
	return Outcome{Reason: reason, Detail: detail}
}

// Validate runs the rules in their fixed order: symbol shape, quantity
// precision, minimum notional, limit price. For a limit order whose price is
// absent the notional rule defers to the limit-price rule, since its notional
// is undefined without one. Validation is idempotent for a fixed context.
func Validate(ctx context.Context, req order.Request, limits Limits, price PriceFunc) Outcome {
	if detail, ok := checkSymbol(req.Symbol, limits); !ok {
		return rejected(ReasonInvalidSymbol, detail)
	}

	normalized, ok := checkPrecision(req.Quantity, limits.QuantityPrecision)
	if !ok {
		return rejected(ReasonInvalidQuantityPrecision, "quantity exceeds allowed decimal places")
	}
	req.Quantity = normalized

	if req.Kind == order.Limit && !req.Price.IsPositive() {
		return rejected(ReasonMissingOrInvalidPrice, "limit orders require a positive price")
	}

	reference := req.Price
	if req.Kind == order.Market {
		px, err := price(ctx, req.Symbol)
		if err != nil {
			return rejected(ReasonPriceUnavailable, "reference price lookup failed")
		}
		reference = px
	}
	if req.Quantity.Mul(reference).LessThan(limits.MinNotional) {
		return rejected(ReasonNotionalTooSmall, "order notional below exchange minimum")
	}

	return Outcome{Accepted: true, Request: req}
}

func checkSymbol(symbol string, limits Limits) (string, bool) {
	if symbol == "" {
		return "symbol is empty", false
	}
	if len(limits.AllowedSymbols) > 0 {
		for _, s := range limits.AllowedSymbols {
			if symbol == s {
				return "", true
			}
		}
		return "symbol not on the allow-list for this market", false
	}
	for _, suffix := range limits.QuoteSuffixes {
		if symbol != suffix && strings.HasSuffix(symbol, suffix) {
			return "", true
		}
	}
	return "symbol does not end in a supported quote currency", false
}

// checkPrecision verifies the quantity round-trips exactly at the configured
// decimal-place count and returns it normalized with banker's rounding.
func checkPrecision(qty decimal.Decimal, places int32) (decimal.Decimal, bool) {
	if !qty.Truncate(places).Equal(qty) {
		return decimal.Decimal{}, false
	}
	return qty.RoundBank(places), true
}
