// Package orchestrator drives the trade settlement state machine and keeps
// the client-held trade view consistent with the authoritative backend.
package orchestrator

import (
	"context"

	"github.com/fxlane/fxlane/internal/schema"
	"github.com/fxlane/fxlane/internal/transport"
)

// Backend is the slice of the transport adapter the engine consumes.
// *transport.Client satisfies it; tests substitute scripted fakes.
type Backend interface {
	CreateOffer(ctx context.Context, offer schema.Offer) (schema.Offer, error)
	UpdateOfferStatus(ctx context.Context, offerID string, status schema.OfferStatus) (schema.Offer, error)
	CreateTrade(ctx context.Context, offerID string, req transport.TradeRequest) (schema.Trade, error)
	ListTrades(ctx context.Context, query transport.TradeQuery) ([]schema.Trade, error)
	GetTrade(ctx context.Context, tradeID string) (schema.Trade, error)
	TradeAction(ctx context.Context, tradeID string, action transport.Action, body any) (schema.Trade, error)
	OpenDispute(ctx context.Context, tradeID, reason string) (schema.Trade, error)
	UploadPaymentProof(ctx context.Context, tradeID string, proof transport.ProofUpload) (schema.TradeMessage, error)
	SubmitRating(ctx context.Context, tradeID string, rating transport.Rating) error
	ListMessages(ctx context.Context, tradeID string) ([]schema.TradeMessage, error)
}

var _ Backend = (*transport.Client)(nil)

// Logger captures the structured logging surface the engine emits to.
// *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Metrics records engine activity. Both the OpenTelemetry instruments and
// the in-memory test counters satisfy it.
type Metrics interface {
	RecordTradeCreated(ctx context.Context)
	RecordTransition(ctx context.Context, event string)
	RecordPollTick(ctx context.Context)
	RecordPollFailure(ctx context.Context)
	RecordReconciliation(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) RecordTradeCreated(context.Context)      {}
func (nopMetrics) RecordTransition(context.Context, string) {}
func (nopMetrics) RecordPollTick(context.Context)          {}
func (nopMetrics) RecordPollFailure(context.Context)       {}
func (nopMetrics) RecordReconciliation(context.Context)    {}
