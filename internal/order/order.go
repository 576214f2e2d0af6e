// Package order defines the broker-agnostic representation of an inbound
// trading instruction and the structural parse that produces it.
package order

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side enumerates order directions.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short order.
	Sell Side = "SELL"
)

// Kind enumerates supported order types.
type Kind string

const (
	// Market executes at the current market price.
	Market Kind = "MARKET"
	// Limit executes at the given price or better.
	Limit Kind = "LIMIT"
)

// Request is the validated shape of one trading instruction. It is a value
// type constructed fresh per webhook and never mutated after Parse returns.
type Request struct {
	Broker   string          `json:"broker"`
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Kind     Kind            `json:"type"`
	Price    decimal.Decimal `json:"price,omitempty"`
	ClientID string          `json:"client_id,omitempty"`
}

// ParseError reports a structural problem with the raw payload: a missing or
// ill-typed field, or a value outside the closed side/kind sets.
type ParseError struct {
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Msg)
}

type payload struct {
	Broker   *string          `json:"broker"`
	Symbol   *string          `json:"symbol"`
	Side     *string          `json:"side"`
	Quantity *decimal.Decimal `json:"quantity"`
	Kind     *string          `json:"type"`
	Price    *decimal.Decimal `json:"price"`
	ClientID string           `json:"client_id"`
}

// Parse establishes type and presence for an untrusted JSON payload. It does
// no network or rule work; exchange constraints are enforced later by the
// rules pipeline. Unknown fields are ignored. Side, kind, broker, and symbol
// comparisons are case-insensitive and stored uppercase.
//
// A LIMIT payload without a price parses successfully with a zero price; the
// rules pipeline owns that rejection so the caller sees MissingOrInvalidPrice
// rather than a parse failure.
func Parse(raw []byte) (Request, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Request{}, &ParseError{Msg: "malformed JSON payload"}
	}

	if p.Broker == nil || strings.TrimSpace(*p.Broker) == "" {
		return Request{}, &ParseError{Field: "broker", Msg: "required"}
	}
	if p.Symbol == nil || strings.TrimSpace(*p.Symbol) == "" {
		return Request{}, &ParseError{Field: "symbol", Msg: "required"}
	}
	if p.Side == nil {
		return Request{}, &ParseError{Field: "side", Msg: "required"}
	}
	if p.Quantity == nil {
		return Request{}, &ParseError{Field: "quantity", Msg: "required"}
	}

	side := Side(strings.ToUpper(strings.TrimSpace(*p.Side)))
	if side != Buy && side != Sell {
		return Request{}, &ParseError{Field: "side", Msg: "must be buy or sell"}
	}

	kind := Market
	if p.Kind != nil {
		kind = Kind(strings.ToUpper(strings.TrimSpace(*p.Kind)))
	}
	if kind != Market && kind != Limit {
		return Request{}, &ParseError{Field: "type", Msg: "must be MARKET or LIMIT"}
	}

	if !p.Quantity.IsPositive() {
		return Request{}, &ParseError{Field: "quantity", Msg: "must be positive"}
	}

	req := Request{
		Broker:   strings.ToUpper(strings.TrimSpace(*p.Broker)),
		Symbol:   strings.ToUpper(strings.TrimSpace(*p.Symbol)),
		Side:     side,
		Quantity: *p.Quantity,
		Kind:     kind,
		ClientID: p.ClientID,
	}
	if p.Price != nil {
		req.Price = *p.Price
	}
	return req, nil
}
