// Package broker defines the capability set every backend variant binds to
// and the normalized error taxonomy dispatch relies on. Variants live in
// subpackages; the router never sees backend calling conventions.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradehook/internal/order"
	"tradehook/internal/rules"
)

// Mode distinguishes simulated from live execution.
type Mode string

const (
	Live    Mode = "LIVE"
	Sandbox Mode = "SANDBOX"
)

// Timeouts bounding the two blocking backend operations.
const (
	PriceTimeout = 3 * time.Second
	PlaceTimeout = 10 * time.Second
)

// Placement is the normalized record of a successful backend order.
type Placement struct {
	OrderID string
	Status  string
}

// Adapter translates validated requests into one backend's calling
// convention. Implementations must not share mutable state between live and
// sandbox instances.
type Adapter interface {
	// CurrentPrice returns the reference price used for the notional check.
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// PlaceOrder executes the order at the backend.
	PlaceOrder(ctx context.Context, req order.Request) (Placement, error)
	// Mode reports whether this variant touches real funds.
	Mode() Mode
	// Limits exposes the exchange constraints the rules pipeline enforces.
	Limits() rules.Limits
}

// Kind classifies backend failures into the fixed taxonomy.
type Kind string

const (
	KindPriceUnavailable    Kind = "PriceUnavailable"
	KindInsufficientBalance Kind = "InsufficientBalance"
	KindRateLimited         Kind = "RateLimited"
	KindUnauthorized        Kind = "Unauthorized"
	KindExecutionFailed     Kind = "ExecutionFailed"
)

// Error is a backend failure mapped into the taxonomy. Detail must already be
// credential-free; adapters sanitize before constructing one.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Classify extracts the taxonomy kind from an adapter error, defaulting to
// ExecutionFailed for anything unmapped.
func Classify(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindExecutionFailed
}

// Detail returns the sanitized human-readable detail of an adapter error, or
// a generic message when none was mapped.
func Detail(err error) string {
	var be *Error
	if errors.As(err, &be) && be.Detail != "" {
		return be.Detail
	}
	return "backend call failed"
}
