package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxlane/fxlane/errs"
)

// OfferStatus tracks an offer through its lifecycle. Offers are never
// physically deleted; deactivation is a status change by the maker.
type OfferStatus string

const (
	// OfferActive accepts new trades.
	OfferActive OfferStatus = "active"
	// OfferPaused is temporarily withdrawn by the maker.
	OfferPaused OfferStatus = "paused"
	// OfferCompleted has exhausted its available amount.
	OfferCompleted OfferStatus = "completed"
	// OfferCancelled was withdrawn permanently.
	OfferCancelled OfferStatus = "cancelled"
)

// Offer is a published currency-exchange proposal owned by its maker.
type Offer struct {
	ID              string          `json:"id"`
	Maker           Participant     `json:"maker"`
	SellCurrency    Currency        `json:"sellCurrency"`
	BuyCurrency     Currency        `json:"buyCurrency"`
	SellAmount      decimal.Decimal `json:"sellAmount"`
	BuyAmount       decimal.Decimal `json:"buyAmount"`
	ExchangeRate    decimal.Decimal `json:"exchangeRate"`
	MarginPercent   decimal.Decimal `json:"marginPercent"`
	PaymentMethods  []PaymentMethod `json:"paymentMethods,omitempty"`
	PaymentWindow   time.Duration   `json:"paymentWindow"`
	MinTrade        decimal.Decimal `json:"minTrade"`
	MaxTrade        decimal.Decimal `json:"maxTrade"`
	AvailableAmount decimal.Decimal `json:"availableAmount"`
	Status          OfferStatus     `json:"status"`
	KYCRequired     bool            `json:"kycRequired"`
	Terms           string          `json:"terms,omitempty"`
	AutoReply       string          `json:"autoReply,omitempty"`
}

// Validate checks the structural offer invariant:
// minTrade <= maxTrade <= availableAmount <= sellAmount, and
// buyAmount == round(sellAmount * exchangeRate). It must hold at creation
// and after every trade that consumes availableAmount.
func (o Offer) Validate() error {
	if o.MinTrade.GreaterThan(o.MaxTrade) {
		return errs.New("schema", errs.CodeInvalidAmount,
			errs.WithMessage("minTrade exceeds maxTrade"))
	}
	if o.MaxTrade.GreaterThan(o.AvailableAmount) {
		return errs.New("schema", errs.CodeInvalidAmount,
			errs.WithMessage("maxTrade exceeds availableAmount"))
	}
	if o.AvailableAmount.GreaterThan(o.SellAmount) {
		return errs.New("schema", errs.CodeInvalidAmount,
			errs.WithMessage("availableAmount exceeds sellAmount"))
	}
	want := o.SellAmount.Mul(o.ExchangeRate).Round(2)
	if !o.BuyAmount.Round(2).Equal(want) {
		return errs.New("schema", errs.CodeInvalidAmount,
			errs.WithMessage("buyAmount does not match sellAmount * exchangeRate"))
	}
	return nil
}

// TradeBounds returns the acceptable amount interval for a new trade:
// [minTrade, min(maxTrade, availableAmount)].
func (o Offer) TradeBounds() (min, max decimal.Decimal) {
	max = o.MaxTrade
	if o.AvailableAmount.LessThan(max) {
		max = o.AvailableAmount
	}
	return o.MinTrade, max
}

// AcceptsAmount reports whether amount falls inside TradeBounds.
func (o Offer) AcceptsAmount(amount decimal.Decimal) bool {
	min, max := o.TradeBounds()
	return amount.GreaterThanOrEqual(min) && amount.LessThanOrEqual(max)
}

// FindPaymentMethod returns the offer's payment method with the given id.
func (o Offer) FindPaymentMethod(id string) (PaymentMethod, bool) {
	for _, pm := range o.PaymentMethods {
		if pm.ID == id {
			return pm, true
		}
	}
	return PaymentMethod{}, false
}
