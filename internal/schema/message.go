package schema

import "time"

// MessageKind categorizes entries in a trade's append-only message log.
type MessageKind string

const (
	// MessageSystem is an automated notice from the backend.
	MessageSystem MessageKind = "system"
	// MessageUser is free-form chat between the participants.
	MessageUser MessageKind = "user"
	// MessagePaymentProof carries an uploaded payment receipt.
	MessagePaymentProof MessageKind = "payment_proof"
	// MessageDispute carries a dispute filing.
	MessageDispute MessageKind = "dispute"
)

// PaymentProof describes an uploaded payment receipt attachment.
type PaymentProof struct {
	Ref      string `json:"ref"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// DisputeDetail describes a dispute filing attached to a message.
type DisputeDetail struct {
	Reason   string `json:"reason"`
	OpenedBy string `json:"openedBy,omitempty"`
}

// TradeMessage is one entry in a trade's message log. The log is not
// state-bearing for the engine, but payment-proof entries gate the
// confirm-payment transition.
type TradeMessage struct {
	ID           string         `json:"id"`
	TradeID      string         `json:"tradeId"`
	Kind         MessageKind    `json:"kind"`
	SenderID     string         `json:"senderId,omitempty"`
	Content      string         `json:"content,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	PaymentProof *PaymentProof  `json:"paymentProof,omitempty"`
	Dispute      *DisputeDetail `json:"dispute,omitempty"`
}
