// Package dispatch routes a raw webhook payload through parsing, validation,
// adapter selection, and placement, producing exactly one terminal outcome
// per request.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tradehook/internal/broker"
	"tradehook/internal/journal"
	"tradehook/internal/metrics"
	"tradehook/internal/order"
	"tradehook/internal/rules"
)

// Outcome is the normalized result returned to the transport layer. It
// serializes directly to the webhook response body.
type Outcome struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Journal receives terminal outcomes for the append-only log.
type Journal interface {
	Record(journal.Entry)
}

// Router holds the configured adapter set. It is immutable after
// construction; concurrent Dispatch calls share no mutable state.
type Router struct {
	adapters map[string]broker.Adapter
	log      zerolog.Logger
	journal  Journal
}

// Option configures Router construction.
type Option func(*Router)

// WithJournal attaches an outcome journal.
func WithJournal(j Journal) Option {
	return func(r *Router) { r.journal = j }
}

// New builds a router over the configured broker variants, keyed by tag.
func New(adapters map[string]broker.Adapter, log zerolog.Logger, opts ...Option) *Router {
	r := &Router{adapters: adapters, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch runs one payload to a terminal outcome. No backend call is made
// unless parsing and every validation rule pass, and nothing is retried.
func (r *Router) Dispatch(ctx context.Context, raw []byte) Outcome {
	req, err := order.Parse(raw)
	if err != nil {
		metrics.RejectionsTotal.WithLabelValues(string(rules.ReasonParseError)).Inc()
		r.log.Warn().Err(err).Msg("payload rejected at parse")
		return r.finish(req, Outcome{Error: string(rules.ReasonParseError), Detail: err.Error()})
	}
	metrics.SignalsTotal.WithLabelValues(req.Broker).Inc()

	adapter, ok := r.adapters[req.Broker]
	if !ok {
		metrics.RejectionsTotal.WithLabelValues(string(rules.ReasonUnsupportedBroker)).Inc()
		r.log.Warn().Str("broker", req.Broker).Msg("unsupported broker tag")
		return r.finish(req, Outcome{Error: string(rules.ReasonUnsupportedBroker), Detail: "no adapter configured for broker"})
	}

	outcome := rules.Validate(ctx, req, adapter.Limits(), adapter.CurrentPrice)
	if !outcome.Accepted {
		metrics.RejectionsTotal.WithLabelValues(string(outcome.Reason)).Inc()
		r.log.Info().
			Str("broker", req.Broker).
			Str("symbol", req.Symbol).
			Str("reason", string(outcome.Reason)).
			Msg("signal rejected")
		return r.finish(req, Outcome{Error: string(outcome.Reason), Detail: outcome.Detail})
	}

	placement, err := adapter.PlaceOrder(ctx, outcome.Request)
	if err != nil {
		kind := broker.Classify(err)
		metrics.BrokerErrorsTotal.WithLabelValues(req.Broker, string(kind)).Inc()
		r.log.Error().
			Str("broker", req.Broker).
			Str("symbol", req.Symbol).
			Str("kind", string(kind)).
			Msg("placement failed")
		return r.finish(req, Outcome{Error: string(kind), Detail: broker.Detail(err)})
	}

	metrics.OrdersTotal.WithLabelValues(req.Broker, string(req.Side)).Inc()
	r.log.Info().
		Str("broker", req.Broker).
		Str("mode", string(adapter.Mode())).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("orderId", placement.OrderID).
		Str("status", placement.Status).
		Msg("order dispatched")
	return r.finish(req, Outcome{Success: true, OrderID: placement.OrderID, Status: placement.Status})
}

func (r *Router) finish(req order.Request, out Outcome) Outcome {
	if r.journal == nil {
		return out
	}
	state := "completed"
	if !out.Success {
		state = "rejected"
		switch broker.Kind(out.Error) {
		case broker.KindPriceUnavailable, broker.KindInsufficientBalance,
			broker.KindRateLimited, broker.KindUnauthorized, broker.KindExecutionFailed:
			state = "failed"
		}
	}
	r.journal.Record(journal.Entry{
		Ts:      time.Now(),
		Broker:  req.Broker,
		Symbol:  req.Symbol,
		Side:    string(req.Side),
		State:   state,
		OrderID: out.OrderID,
		Reason:  out.Error,
	})
	return out
}
