package schema

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus enumerates the settlement states a trade moves through.
type TradeStatus string

const (
	// StatusPendingAcceptance waits for the maker to accept the trade.
	StatusPendingAcceptance TradeStatus = "pending_acceptance"
	// StatusAccepted means the maker accepted; escrow and quote settle next.
	StatusAccepted TradeStatus = "accepted"
	// StatusPaymentPending waits for the paying party to send funds.
	StatusPaymentPending TradeStatus = "payment_pending"
	// StatusPaymentSent means payment proof has been uploaded.
	StatusPaymentSent TradeStatus = "payment_sent"
	// StatusPaymentConfirmed means the payee acknowledged receipt.
	StatusPaymentConfirmed TradeStatus = "payment_confirmed"
	// StatusCompleted is terminal: funds released.
	StatusCompleted TradeStatus = "completed"
	// StatusCancelled is terminal: the trade was abandoned or rejected.
	StatusCancelled TradeStatus = "cancelled"
	// StatusDisputed awaits external arbitration; resolution arrives as a
	// transition to completed or cancelled.
	StatusDisputed TradeStatus = "disputed"
)

// legacy wire alias kept by older backend deployments.
const statusAliasPending = "pending"

// ParseTradeStatus normalizes a wire status value into the canonical
// enumeration, folding the legacy "pending" alias into pending_acceptance.
func ParseTradeStatus(raw string) (TradeStatus, bool) {
	switch TradeStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case TradeStatus(statusAliasPending), StatusPendingAcceptance:
		return StatusPendingAcceptance, true
	case StatusAccepted:
		return StatusAccepted, true
	case StatusPaymentPending:
		return StatusPaymentPending, true
	case StatusPaymentSent:
		return StatusPaymentSent, true
	case StatusPaymentConfirmed:
		return StatusPaymentConfirmed, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusCancelled:
		return StatusCancelled, true
	case StatusDisputed:
		return StatusDisputed, true
	default:
		return "", false
	}
}

// Terminal reports whether no further client-visible transition can occur.
// Disputed trades are not terminal: arbitration resolves them to completed
// or cancelled, and the client observes that through reconciliation.
func (s TradeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CountsActive reports whether the status occupies a buyer's single active
// trade slot. Disputed trades are parked with arbitration and do not block
// the buyer from trading elsewhere.
func (s TradeStatus) CountsActive() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusDisputed:
		return false
	default:
		return s != ""
	}
}

// ShouldSync reports whether the polling loop keeps refreshing this status.
func (s TradeStatus) ShouldSync() bool {
	return s != "" && !s.Terminal()
}

// TradeEvent names a transition trigger in the settlement state machine.
type TradeEvent string

const (
	// EventAccept is the maker accepting a pending trade.
	EventAccept TradeEvent = "accept"
	// EventCancel abandons a pending trade.
	EventCancel TradeEvent = "cancel"
	// EventEscrowSettled is the automatic escrow/quote settlement step.
	EventEscrowSettled TradeEvent = "escrow_settled"
	// EventPaymentSent records the payer's uploaded proof.
	EventPaymentSent TradeEvent = "payment_sent"
	// EventConfirmPayment is the payee acknowledging receipt.
	EventConfirmPayment TradeEvent = "confirm_payment"
	// EventRelease signs the fund release.
	EventRelease TradeEvent = "release"
	// EventDispute opens a dispute from any non-terminal status.
	EventDispute TradeEvent = "dispute"
	// EventResolve is the arbitration outcome; never client-initiated.
	EventResolve TradeEvent = "resolve"
)

// transitions is the legal state machine. Dispute is handled separately
// because it branches from every non-terminal status.
var transitions = map[TradeStatus]map[TradeEvent]TradeStatus{
	StatusPendingAcceptance: {
		EventAccept: StatusAccepted,
		EventCancel: StatusCancelled,
	},
	StatusAccepted: {
		EventEscrowSettled: StatusPaymentPending,
	},
	StatusPaymentPending: {
		EventPaymentSent: StatusPaymentSent,
	},
	StatusPaymentSent: {
		EventConfirmPayment: StatusPaymentConfirmed,
	},
	StatusPaymentConfirmed: {
		EventRelease: StatusCompleted,
	},
}

// Transition returns the resulting status for (status, event) when the pair
// is legal. Dispute opening is legal from every non-terminal, non-disputed
// status; resolution only from disputed.
func Transition(status TradeStatus, event TradeEvent) (TradeStatus, bool) {
	if event == EventDispute {
		if status.Terminal() || status == StatusDisputed || status == "" {
			return "", false
		}
		return StatusDisputed, true
	}
	if event == EventResolve {
		if status != StatusDisputed {
			return "", false
		}
		// Arbitration picks the outcome; the caller learns it from the
		// backend, completed here is only the optimistic default.
		return StatusCompleted, true
	}
	next, ok := transitions[status][event]
	return next, ok
}

// Events lists every defined trade event, for exhaustive table checks.
func Events() []TradeEvent {
	return []TradeEvent{
		EventAccept, EventCancel, EventEscrowSettled, EventPaymentSent,
		EventConfirmPayment, EventRelease, EventDispute, EventResolve,
	}
}

// Statuses lists every defined trade status.
func Statuses() []TradeStatus {
	return []TradeStatus{
		StatusPendingAcceptance, StatusAccepted, StatusPaymentPending,
		StatusPaymentSent, StatusPaymentConfirmed, StatusCompleted,
		StatusCancelled, StatusDisputed,
	}
}

// Role identifies which side of a trade an identity occupies.
type Role string

const (
	// RoleMaker published the offer behind the trade.
	RoleMaker Role = "maker"
	// RoleTaker initiated the trade against the offer.
	RoleTaker Role = "taker"
	// RoleObserver is any identity that is not a participant.
	RoleObserver Role = "observer"
)

// PaymentWindow bounds the time budget for submitting payment proof.
// Both edges are derived once at trade creation and never extended.
type PaymentWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Trade is the client-held view of one settlement between maker and taker.
// It is owned jointly; only status moves, and only through legal
// transitions. Once terminal the trade is immutable.
type Trade struct {
	ID              string          `json:"id"`
	OfferID         string          `json:"offerId"`
	Maker           Participant     `json:"maker"`
	Taker           Participant     `json:"taker"`
	SellCurrency    Currency        `json:"sellCurrency"`
	BuyCurrency     Currency        `json:"buyCurrency"`
	SellAmount      decimal.Decimal `json:"sellAmount"`
	BuyAmount       decimal.Decimal `json:"buyAmount"`
	ExchangeRate    decimal.Decimal `json:"exchangeRate"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	EscrowAmount    decimal.Decimal `json:"escrowAmount"`
	EscrowCurrency  Currency        `json:"escrowCurrency"`
	Status          TradeStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	QuoteLockExpiry time.Time       `json:"quoteLockExpiry"`
	PaymentWindow   PaymentWindow   `json:"paymentWindow"`
	ChatRoomID      string          `json:"chatRoomId"`
	PaymentProofRef string          `json:"paymentProofRef,omitempty"`
	DisputeReason   string          `json:"disputeReason,omitempty"`
}

// RoleOf resolves which role the given identity plays on this trade.
func (t Trade) RoleOf(userID string) Role {
	switch {
	case userID != "" && userID == t.Maker.ID:
		return RoleMaker
	case userID != "" && userID == t.Taker.ID:
		return RoleTaker
	default:
		return RoleObserver
	}
}

// PayerRole returns the side that owes funds. In the default offer
// direction the taker buys the maker's sell-currency and pays first.
func (t Trade) PayerRole() Role { return RoleTaker }

// PayeeRole returns the side that receives the payment.
func (t Trade) PayeeRole() Role { return RoleMaker }
