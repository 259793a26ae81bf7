package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fxlane/fxlane/errs"
	"github.com/fxlane/fxlane/internal/schema"
	"github.com/fxlane/fxlane/internal/telemetry"
)

func fastConfig() Config {
	return Config{PollInterval: 5 * time.Millisecond, FailureLimit: 3}
}

// waitUpdate drains the watch channel until an update satisfies the
// predicate or the deadline passes.
func waitUpdate(t *testing.T, ch <-chan Update, pred func(Update) bool) Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-ch:
			if pred(u) {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for update")
		}
	}
}

func TestReconcileAppliesBackendStatus(t *testing.T) {
	f := &fakeBackend{}
	counters := telemetry.NewEngineCounters()
	e := newTestEngine(t, f, "taker-1", fastConfig(), WithMetrics(counters))
	attach(t, e, f, schema.StatusAccepted)

	f.mu.Lock()
	f.getStatus = schema.StatusPaymentPending
	f.mu.Unlock()

	waitUpdate(t, e.Watch(), func(u Update) bool {
		return u.Err == nil && u.Status == schema.StatusPaymentPending
	})
	got, _ := e.Snapshot()
	require.Equal(t, schema.StatusPaymentPending, got.Status)
	require.GreaterOrEqual(t, counters.Snapshot().Reconciliations, 1)
}

func TestReconcileSameStatusIsNoOp(t *testing.T) {
	f := &fakeBackend{}
	counters := telemetry.NewEngineCounters()
	e := newTestEngine(t, f, "taker-1", fastConfig(), WithMetrics(counters))
	attach(t, e, f, schema.StatusAccepted)

	require.Eventually(t, func() bool {
		return counters.Snapshot().PollTicks >= 4
	}, 2*time.Second, time.Millisecond)
	require.Zero(t, counters.Snapshot().Reconciliations, "matching statuses must not count as reconciliations")

	got, _ := e.Snapshot()
	require.Equal(t, schema.StatusAccepted, got.Status)
}

func TestReconcileSingleFlight(t *testing.T) {
	f := &fakeBackend{getBlock: make(chan struct{})}
	e := newTestEngine(t, f, "taker-1", Config{PollInterval: 2 * time.Millisecond, FailureLimit: 3})

	f.mu.Lock()
	f.trade = sampleTrade(schema.StatusAccepted)
	f.mu.Unlock()
	// adopt without Attach so the blocked GetTrade only serves the loop
	e.adopt(sampleTrade(schema.StatusAccepted))

	require.Eventually(t, func() bool {
		return f.count("GetTrade") >= 1
	}, 2*time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond) // many ticks fire while the fetch hangs
	close(f.getBlock)

	require.Eventually(t, func() bool {
		return f.count("GetTrade") >= 2
	}, 2*time.Second, time.Millisecond)
	require.Equal(t, int32(1), f.getMaxSeen.Load(), "overlapping fetches for one trade")
}

func TestTerminalStatusStopsPolling(t *testing.T) {
	f := &fakeBackend{}
	e := newTestEngine(t, f, "taker-1", fastConfig())
	attach(t, e, f, schema.StatusPaymentConfirmed)

	f.mu.Lock()
	f.getStatus = schema.StatusCompleted
	f.mu.Unlock()

	waitUpdate(t, e.Watch(), func(u Update) bool {
		return u.Status == schema.StatusCompleted
	})
	settled := f.count("GetTrade")
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, f.count("GetTrade"), "terminal trades must not be polled")
}

func TestPersistentPollFailureEscalates(t *testing.T) {
	f := &fakeBackend{}
	counters := telemetry.NewEngineCounters()
	e := newTestEngine(t, f, "taker-1", fastConfig(), WithMetrics(counters))
	attach(t, e, f, schema.StatusPaymentSent)

	f.mu.Lock()
	f.getErr = errs.New("transport", errs.CodeTransport)
	f.mu.Unlock()

	u := waitUpdate(t, e.Watch(), func(u Update) bool { return u.Err != nil })
	require.True(t, errs.IsCode(u.Err, errs.CodeTransport))
	require.Equal(t, schema.StatusPaymentSent, u.Status, "escalation reports the retained stale view")
	require.GreaterOrEqual(t, counters.Snapshot().PollFailures, 3)

	got, _ := e.Snapshot()
	require.Equal(t, schema.StatusPaymentSent, got.Status, "failed polls never corrupt local state")
}

func TestStaleReconcileResultDiscarded(t *testing.T) {
	f := &fakeBackend{}
	e := newTestEngine(t, f, "taker-1", idleConfig())
	attach(t, e, f, schema.StatusAccepted)

	// a fetch started while the trade was still accepted lands after a local
	// transition moved it on; the stale status snapshot fails the CAS
	stale := sampleTrade(schema.StatusPaymentPending)
	e.applyTransition("trade-1", sampleTrade(schema.StatusDisputed))
	e.applyReconciled(context.Background(), "trade-1", schema.StatusAccepted, stale)

	got, _ := e.Snapshot()
	require.Equal(t, schema.StatusDisputed, got.Status)
}

func TestReconcileAfterAbandonDiscarded(t *testing.T) {
	f := &fakeBackend{}
	e := newTestEngine(t, f, "taker-1", idleConfig())
	attach(t, e, f, schema.StatusAccepted)
	e.Abandon()

	e.applyReconciled(context.Background(), "trade-1", schema.StatusAccepted, sampleTrade(schema.StatusPaymentPending))
	_, ok := e.Snapshot()
	require.False(t, ok)
}

func TestTransitionSchedulesConfirmatoryPoll(t *testing.T) {
	f := &fakeBackend{trade: sampleTrade(schema.StatusPendingAcceptance)}
	e := newTestEngine(t, f, "maker-1", Config{PollInterval: time.Hour, FailureLimit: 3})
	attach(t, e, f, schema.StatusPendingAcceptance)
	require.Zero(t, f.count("GetTrade")-1, "only the attach fetch so far")

	_, err := e.RequestTransition(context.Background(), schema.EventAccept)
	require.NoError(t, err)

	// the poke fires without waiting for the hour-long ticker
	require.Eventually(t, func() bool {
		return f.count("GetTrade") >= 2
	}, 2*time.Second, time.Millisecond)
}
