package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments bundles the engine's OpenTelemetry counters.
type Instruments struct {
	tradesCreated   metric.Int64Counter
	transitions     metric.Int64Counter
	pollTicks       metric.Int64Counter
	pollFailures    metric.Int64Counter
	reconciliations metric.Int64Counter
}

// NewInstruments registers the engine counters on the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	tradesCreated, err := meter.Int64Counter("fxlane.trades.created",
		metric.WithDescription("Trades created through the orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("create trades counter: %w", err)
	}
	transitions, err := meter.Int64Counter("fxlane.trades.transitions",
		metric.WithDescription("Status transitions applied, by event"))
	if err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}
	pollTicks, err := meter.Int64Counter("fxlane.sync.ticks",
		metric.WithDescription("Synchronization fetches issued"))
	if err != nil {
		return nil, fmt.Errorf("create poll ticks counter: %w", err)
	}
	pollFailures, err := meter.Int64Counter("fxlane.sync.failures",
		metric.WithDescription("Synchronization fetches that failed"))
	if err != nil {
		return nil, fmt.Errorf("create poll failures counter: %w", err)
	}
	reconciliations, err := meter.Int64Counter("fxlane.sync.reconciliations",
		metric.WithDescription("Divergent fetches reconciled into local state"))
	if err != nil {
		return nil, fmt.Errorf("create reconciliations counter: %w", err)
	}
	return &Instruments{
		tradesCreated:   tradesCreated,
		transitions:     transitions,
		pollTicks:       pollTicks,
		pollFailures:    pollFailures,
		reconciliations: reconciliations,
	}, nil
}

// RecordTradeCreated counts a successful trade creation.
func (i *Instruments) RecordTradeCreated(ctx context.Context) {
	if i == nil {
		return
	}
	i.tradesCreated.Add(ctx, 1)
}

// RecordTransition counts an applied status transition by event name.
func (i *Instruments) RecordTransition(ctx context.Context, event string) {
	if i == nil {
		return
	}
	i.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// RecordPollTick counts a reconciliation fetch.
func (i *Instruments) RecordPollTick(ctx context.Context) {
	if i == nil {
		return
	}
	i.pollTicks.Add(ctx, 1)
}

// RecordPollFailure counts a failed reconciliation fetch.
func (i *Instruments) RecordPollFailure(ctx context.Context) {
	if i == nil {
		return
	}
	i.pollFailures.Add(ctx, 1)
}

// RecordReconciliation counts a divergent fetch applied to local state.
func (i *Instruments) RecordReconciliation(ctx context.Context) {
	if i == nil {
		return
	}
	i.reconciliations.Add(ctx, 1)
}

// EngineCounters accumulates engine metrics in-memory; used by tests and
// local diagnostics where an OTLP pipeline is unavailable.
type EngineCounters struct {
	mu sync.Mutex

	TradesCreated   int
	Transitions     map[string]int
	PollTicks       int
	PollFailures    int
	Reconciliations int
}

// NewEngineCounters constructs an empty in-memory accumulator.
func NewEngineCounters() *EngineCounters {
	return &EngineCounters{Transitions: make(map[string]int)}
}

// RecordTradeCreated increments the created-trade counter.
func (c *EngineCounters) RecordTradeCreated(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TradesCreated++
}

// RecordTransition increments the per-event transition counter.
func (c *EngineCounters) RecordTransition(_ context.Context, event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transitions[event]++
}

// RecordPollTick increments the poll tick counter.
func (c *EngineCounters) RecordPollTick(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PollTicks++
}

// RecordPollFailure increments the poll failure counter.
func (c *EngineCounters) RecordPollFailure(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PollFailures++
}

// RecordReconciliation increments the applied-reconciliation counter.
func (c *EngineCounters) RecordReconciliation(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reconciliations++
}

// Snapshot copies the current counter state.
func (c *EngineCounters) Snapshot() EngineCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := EngineCounters{
		TradesCreated:   c.TradesCreated,
		Transitions:     make(map[string]int, len(c.Transitions)),
		PollTicks:       c.PollTicks,
		PollFailures:    c.PollFailures,
		Reconciliations: c.Reconciliations,
	}
	for k, v := range c.Transitions {
		out.Transitions[k] = v
	}
	return out
}
