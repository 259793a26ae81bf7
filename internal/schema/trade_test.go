package schema

import "testing"

func TestParseTradeStatusFoldsLegacyAlias(t *testing.T) {
	cases := map[string]TradeStatus{
		"pending":            StatusPendingAcceptance,
		"pending_acceptance": StatusPendingAcceptance,
		" Pending ":          StatusPendingAcceptance,
		"accepted":           StatusAccepted,
		"payment_pending":    StatusPaymentPending,
		"payment_sent":       StatusPaymentSent,
		"payment_confirmed":  StatusPaymentConfirmed,
		"COMPLETED":          StatusCompleted,
		"cancelled":          StatusCancelled,
		"disputed":           StatusDisputed,
	}
	for raw, expected := range cases {
		got, ok := ParseTradeStatus(raw)
		if !ok {
			t.Fatalf("ParseTradeStatus(%q) not recognized", raw)
		}
		if got != expected {
			t.Fatalf("ParseTradeStatus(%q)=%q want %q", raw, got, expected)
		}
	}
	if _, ok := ParseTradeStatus("shipped"); ok {
		t.Fatalf("unexpected status should not parse")
	}
}

func TestTransitionTableMatchesSpecifiedPairs(t *testing.T) {
	legal := map[TradeStatus]map[TradeEvent]TradeStatus{
		StatusPendingAcceptance: {
			EventAccept:  StatusAccepted,
			EventCancel:  StatusCancelled,
			EventDispute: StatusDisputed,
		},
		StatusAccepted: {
			EventEscrowSettled: StatusPaymentPending,
			EventDispute:       StatusDisputed,
		},
		StatusPaymentPending: {
			EventPaymentSent: StatusPaymentSent,
			EventDispute:     StatusDisputed,
		},
		StatusPaymentSent: {
			EventConfirmPayment: StatusPaymentConfirmed,
			EventDispute:        StatusDisputed,
		},
		StatusPaymentConfirmed: {
			EventRelease: StatusCompleted,
			EventDispute: StatusDisputed,
		},
		StatusDisputed: {
			EventResolve: StatusCompleted,
		},
		StatusCompleted: {},
		StatusCancelled: {},
	}

	for _, status := range Statuses() {
		for _, event := range Events() {
			next, ok := Transition(status, event)
			want, wantOK := legal[status][event]
			if ok != wantOK {
				t.Fatalf("Transition(%s, %s) legality=%v want %v", status, event, ok, wantOK)
			}
			if ok && next != want {
				t.Fatalf("Transition(%s, %s)=%s want %s", status, event, next, want)
			}
		}
	}
}

func TestTerminalAndSyncSets(t *testing.T) {
	for _, status := range Statuses() {
		terminal := status == StatusCompleted || status == StatusCancelled
		if status.Terminal() != terminal {
			t.Fatalf("Terminal(%s)=%v want %v", status, status.Terminal(), terminal)
		}
		if status.ShouldSync() == terminal {
			t.Fatalf("ShouldSync(%s) must be the complement of Terminal", status)
		}
	}
	if TradeStatus("").ShouldSync() {
		t.Fatalf("empty status must never sync")
	}
}

func TestCountsActiveExcludesParkedStatuses(t *testing.T) {
	inactive := map[TradeStatus]bool{
		StatusCompleted: true,
		StatusCancelled: true,
		StatusDisputed:  true,
	}
	for _, status := range Statuses() {
		if status.CountsActive() == inactive[status] {
			t.Fatalf("CountsActive(%s)=%v", status, status.CountsActive())
		}
	}
	if TradeStatus("").CountsActive() {
		t.Fatalf("empty status must not count as active")
	}
}

func TestRoleResolution(t *testing.T) {
	trade := Trade{
		Maker: Participant{ID: "maker-1"},
		Taker: Participant{ID: "taker-1"},
	}
	if got := trade.RoleOf("maker-1"); got != RoleMaker {
		t.Fatalf("RoleOf(maker-1)=%s", got)
	}
	if got := trade.RoleOf("taker-1"); got != RoleTaker {
		t.Fatalf("RoleOf(taker-1)=%s", got)
	}
	if got := trade.RoleOf("someone-else"); got != RoleObserver {
		t.Fatalf("RoleOf(stranger)=%s", got)
	}
	if got := trade.RoleOf(""); got != RoleObserver {
		t.Fatalf("RoleOf(empty)=%s", got)
	}
	if trade.PayerRole() != RoleTaker || trade.PayeeRole() != RoleMaker {
		t.Fatalf("default payment direction should be taker pays maker")
	}
}
