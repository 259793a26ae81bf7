package transport

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fxlane/fxlane/errs"
	"github.com/fxlane/fxlane/internal/schema"
)

func TestWireTradeNormalizesLegacyAliases(t *testing.T) {
	payload := []byte(`{
		"id": "t-1",
		"offer_id": "o-1",
		"merchant": {"id": "m-1", "name": "Maker", "trust_score": 96},
		"buyer": {"id": "b-1", "name": "Taker", "trust_score": 72},
		"sell_currency": {"code": "USD", "kind": "fiat"},
		"buy_currency": {"code": "EUR", "kind": "fiat"},
		"sell_amount": "2000",
		"buy_amount": "1840",
		"exchange_rate": "0.92",
		"status": "pending"
	}`)

	var w wireTrade
	require.NoError(t, json.Unmarshal(payload, &w))
	trade, err := w.toDomain()
	require.NoError(t, err)

	require.Equal(t, "m-1", trade.Maker.ID)
	require.Equal(t, "b-1", trade.Taker.ID)
	require.Equal(t, schema.StatusPendingAcceptance, trade.Status)
	require.Equal(t, schema.BadgePro, trade.Maker.TrustBadge)
	require.Equal(t, schema.BadgeVerified, trade.Taker.TrustBadge)
}

func TestWireTradePrefersCanonicalKeysOverAliases(t *testing.T) {
	payload := []byte(`{
		"id": "t-2",
		"maker": {"id": "canonical-maker"},
		"merchant": {"id": "legacy-merchant"},
		"taker": {"id": "canonical-taker"},
		"buyer": {"id": "legacy-buyer"},
		"sell_currency": {"code": "USD", "kind": "fiat"},
		"buy_currency": {"code": "EUR", "kind": "fiat"},
		"sell_amount": "100",
		"status": "accepted"
	}`)

	var w wireTrade
	require.NoError(t, json.Unmarshal(payload, &w))
	trade, err := w.toDomain()
	require.NoError(t, err)
	require.Equal(t, "canonical-maker", trade.Maker.ID)
	require.Equal(t, "canonical-taker", trade.Taker.ID)
}

func TestWireTradeDefaultsMissingOptionalFields(t *testing.T) {
	w := wireTrade{
		ID:           "t-3",
		Maker:        &wireParticipant{ID: "m"},
		Taker:        &wireParticipant{ID: "b"},
		SellCurrency: wireCurrency{Code: "USD", Kind: "fiat"},
		BuyCurrency:  wireCurrency{Code: "KES", Kind: "fiat"},
		SellAmount:   decimal.NewFromInt(500),
		Status:       "payment_pending",
	}
	trade, err := w.toDomain()
	require.NoError(t, err)

	require.True(t, trade.EscrowAmount.Equal(decimal.NewFromInt(500)),
		"escrow should default to the sell amount")
	require.Equal(t, "USD", trade.EscrowCurrency.Code)
	require.Equal(t, "trade:t-3", trade.ChatRoomID)
}

func TestWireTradeRejectsUnknownStatusAndMissingParticipants(t *testing.T) {
	base := wireTrade{
		ID:    "t-4",
		Maker: &wireParticipant{ID: "m"},
		Taker: &wireParticipant{ID: "b"},
	}

	unknown := base
	unknown.Status = "shipped"
	_, err := unknown.toDomain()
	require.True(t, errs.IsCode(err, errs.CodeTransport))

	missing := base
	missing.Status = "accepted"
	missing.Taker = nil
	_, err = missing.toDomain()
	require.True(t, errs.IsCode(err, errs.CodeTransport))
}

func TestWireOfferRoundTrip(t *testing.T) {
	offer := schema.Offer{
		ID:              "o-1",
		Maker:           schema.Participant{ID: "m-1", Name: "Maker", TrustScore: 88},
		SellCurrency:    schema.Currency{Code: "USD", Kind: schema.CurrencyFiat},
		BuyCurrency:     schema.Currency{Code: "NGN", Kind: schema.CurrencyFiat},
		SellAmount:      decimal.NewFromInt(5000),
		BuyAmount:       decimal.NewFromInt(4600),
		ExchangeRate:    decimal.NewFromFloat(0.92),
		PaymentMethods:  []schema.PaymentMethod{{ID: "sepa", Name: "SEPA"}},
		PaymentWindow:   45 * time.Minute,
		MinTrade:        decimal.NewFromInt(100),
		MaxTrade:        decimal.NewFromInt(5000),
		AvailableAmount: decimal.NewFromInt(5000),
		Status:          schema.OfferActive,
	}

	decoded, err := offerToWire(offer).toDomain()
	require.NoError(t, err)
	require.Equal(t, offer.ID, decoded.ID)
	require.Equal(t, offer.Maker.ID, decoded.Maker.ID)
	require.Equal(t, 45*time.Minute, decoded.PaymentWindow)
	require.True(t, decoded.MinTrade.Equal(offer.MinTrade))
	require.Len(t, decoded.PaymentMethods, 1)
}

func TestWireOfferAcceptsMerchantAlias(t *testing.T) {
	payload := []byte(`{
		"id": "o-2",
		"merchant": {"id": "m-9"},
		"sell_currency": {"code": "USD", "kind": "fiat"},
		"buy_currency": {"code": "EUR", "kind": "fiat"},
		"status": "active"
	}`)
	var w wireOffer
	require.NoError(t, json.Unmarshal(payload, &w))
	offer, err := w.toDomain()
	require.NoError(t, err)
	require.Equal(t, "m-9", offer.Maker.ID)

	w.Merchant = nil
	_, err = w.toDomain()
	require.True(t, errs.IsCode(err, errs.CodeTransport))
}

func TestWireMessageCarriesAttachments(t *testing.T) {
	payload := []byte(`{
		"id": "msg-1",
		"trade_id": "t-1",
		"kind": "payment_proof",
		"sender_id": "b-1",
		"payment_proof": {"ref": "proof-9", "file_name": "receipt.png", "size": 1024}
	}`)
	var w wireMessage
	require.NoError(t, json.Unmarshal(payload, &w))
	msg := w.toDomain()
	require.Equal(t, schema.MessagePaymentProof, msg.Kind)
	require.NotNil(t, msg.PaymentProof)
	require.Equal(t, "proof-9", msg.PaymentProof.Ref)
	require.Nil(t, msg.Dispute)
}
