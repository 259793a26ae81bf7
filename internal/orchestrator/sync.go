package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/fxlane/fxlane/errs"
	"github.com/fxlane/fxlane/internal/schema"
)

// syncLoop polls one trade until it reaches a terminal status or is
// abandoned. Fetches are single-flight: a tick that fires while a fetch is
// still outstanding is skipped, never queued.
type syncLoop struct {
	engine   *Engine
	tradeID  string
	interval time.Duration
	limit    int

	inFlight atomic.Bool
	failures int // touched only by the run goroutine

	cancel context.CancelFunc
	poke   chan struct{}
	wg     conc.WaitGroup
}

// startSyncLocked spins up a loop for the trade. Callers hold e.mu.
func (e *Engine) startSyncLocked(tradeID string) {
	if e.loop != nil && e.loop.tradeID == tradeID {
		return
	}
	e.stopSyncLocked()
	ctx, cancel := context.WithCancel(context.Background())
	loop := &syncLoop{
		engine:   e,
		tradeID:  tradeID,
		interval: e.cfg.PollInterval,
		limit:    e.cfg.FailureLimit,
		cancel:   cancel,
		poke:     make(chan struct{}, 1),
	}
	e.loop = loop
	loop.wg.Go(func() { loop.run(ctx) })
}

// stopSyncLocked cancels the current loop, if any. Callers hold e.mu.
func (e *Engine) stopSyncLocked() {
	if e.loop == nil {
		return
	}
	e.loop.cancel()
	e.loop = nil
}

// pokeSoon requests an immediate reconciliation, used to confirm a transition
// the client just drove. Collapses with any poke already pending.
func (l *syncLoop) pokeSoon() {
	select {
	case l.poke <- struct{}{}:
	default:
	}
}

func (l *syncLoop) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.reconcile(ctx)
		case <-l.poke:
			l.reconcile(ctx)
		}
	}
}

func (l *syncLoop) reconcile(ctx context.Context) {
	if !l.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer l.inFlight.Store(false)

	before, ok := l.engine.sessionStatus(l.tradeID)
	if !ok {
		return
	}
	l.engine.metrics.RecordPollTick(ctx)
	fetched, err := l.engine.backend.GetTrade(ctx, l.tradeID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.failures++
		l.engine.metrics.RecordPollFailure(ctx)
		l.engine.log.Debug("trade poll failed",
			"trade_id", l.tradeID, "consecutive", l.failures, "error", err)
		if l.failures >= l.limit {
			l.engine.log.Error("trade poll failing persistently",
				"trade_id", l.tradeID, "failures", l.failures)
			l.engine.emit(Update{
				TradeID: l.tradeID,
				Status:  before,
				Err: errs.New(component, errs.CodeTransport,
					errs.WithMessage("trade view is stale, backend unreachable"),
					errs.WithCause(err)),
			})
			l.failures = 0
		}
		return
	}
	l.failures = 0
	l.engine.applyReconciled(ctx, l.tradeID, before, fetched)
}

// sessionStatus snapshots the tracked trade's status, or reports false when
// the session no longer tracks tradeID.
func (e *Engine) sessionStatus(tradeID string) (schema.TradeStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.current == nil || e.current.ID != tradeID {
		return "", false
	}
	return e.current.Status, true
}

func (e *Engine) emit(u Update) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(u)
}

// applyReconciled installs a polled trade under compare-and-set semantics:
// the result is discarded when the session moved to another trade, or when a
// locally driven transition changed the status while the fetch was in
// flight. Matching statuses are a no-op, so reapplying the same poll result
// cannot corrupt anything.
func (e *Engine) applyReconciled(ctx context.Context, tradeID string, before schema.TradeStatus, fetched schema.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.current == nil || e.current.ID != tradeID {
		return
	}
	if e.current.Status != before {
		return
	}
	if fetched.Status == e.current.Status {
		return
	}
	t := fetched
	e.current = &t
	e.metrics.RecordReconciliation(ctx)
	e.emitLocked(Update{TradeID: fetched.ID, Status: fetched.Status})
	e.log.Info("trade reconciled",
		"trade_id", fetched.ID, "from", string(before), "to", string(fetched.Status))
	if fetched.Status.Terminal() {
		e.stopSyncLocked()
	}
}
