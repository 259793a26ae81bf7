// Package schema defines the canonical trade-engine domain model.
//
// Everything outside the transport layer speaks these types exclusively;
// backend field aliases never leak past the wire mapping.
package schema

import "github.com/shopspring/decimal"

// CurrencyKind distinguishes fiat money from crypto assets.
type CurrencyKind string

const (
	// CurrencyFiat marks government-issued currencies.
	CurrencyFiat CurrencyKind = "fiat"
	// CurrencyCrypto marks crypto assets.
	CurrencyCrypto CurrencyKind = "crypto"
)

// Currency is immutable reference data describing a tradable currency.
type Currency struct {
	Code   string       `json:"code"`
	Name   string       `json:"name"`
	Symbol string       `json:"symbol"`
	Kind   CurrencyKind `json:"kind"`
}

// PaymentMethod is reference data attached to offers and pinned to a trade
// at creation time; it is never re-selectable afterwards.
type PaymentMethod struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	ProcessingTime string          `json:"processingTime,omitempty"`
	MinLimit       decimal.Decimal `json:"minLimit"`
	MaxLimit       decimal.Decimal `json:"maxLimit"`
}
