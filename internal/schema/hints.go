package schema

// Urgency classifies how the UI layer should weight a status hint.
type Urgency string

const (
	// UrgencyWaiting means the other party or the backend must act next.
	UrgencyWaiting Urgency = "waiting"
	// UrgencyAction means the session owner must act next.
	UrgencyAction Urgency = "action"
	// UrgencyFinal marks terminal outcomes.
	UrgencyFinal Urgency = "final"
	// UrgencyAttention marks statuses needing review, e.g. disputes.
	UrgencyAttention Urgency = "attention"
)

// PresentationHint is the single status-to-copy lookup consumed by the
// out-of-process UI layer. Screens must not re-derive status wording.
type PresentationHint struct {
	Headline string  `json:"headline"`
	Detail   string  `json:"detail"`
	Urgency  Urgency `json:"urgency"`
}

var hints = map[TradeStatus]PresentationHint{
	StatusPendingAcceptance: {
		Headline: "Awaiting acceptance",
		Detail:   "The maker has not yet accepted this trade.",
		Urgency:  UrgencyWaiting,
	},
	StatusAccepted: {
		Headline: "Trade accepted",
		Detail:   "Escrow and quote are settling.",
		Urgency:  UrgencyWaiting,
	},
	StatusPaymentPending: {
		Headline: "Payment due",
		Detail:   "The paying party must send funds and upload proof.",
		Urgency:  UrgencyAction,
	},
	StatusPaymentSent: {
		Headline: "Payment sent",
		Detail:   "Waiting for the payee to confirm receipt.",
		Urgency:  UrgencyWaiting,
	},
	StatusPaymentConfirmed: {
		Headline: "Payment confirmed",
		Detail:   "Funds are ready for release.",
		Urgency:  UrgencyAction,
	},
	StatusCompleted: {
		Headline: "Trade completed",
		Detail:   "Funds released. A rating may be submitted.",
		Urgency:  UrgencyFinal,
	},
	StatusCancelled: {
		Headline: "Trade cancelled",
		Detail:   "This trade was abandoned or rejected.",
		Urgency:  UrgencyFinal,
	},
	StatusDisputed: {
		Headline: "Under dispute",
		Detail:   "Arbitration is reviewing this trade.",
		Urgency:  UrgencyAttention,
	},
}

// HintFor returns the presentation hint for a status. Unknown statuses get
// a neutral waiting hint rather than an empty struct.
func HintFor(status TradeStatus) PresentationHint {
	if h, ok := hints[status]; ok {
		return h
	}
	return PresentationHint{Headline: "Trade in progress", Detail: "", Urgency: UrgencyWaiting}
}
