// Package transport adapts the marketplace REST backend to the canonical
// domain model. Backend field aliases (merchant/maker, buyer/taker, the
// legacy "pending" status) are normalized here and nowhere else.
package transport

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/fxlane/fxlane/errs"
	"github.com/fxlane/fxlane/internal/schema"
)

// envelope is the uniform backend response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireCurrency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
}

func (w wireCurrency) toDomain() schema.Currency {
	kind := schema.CurrencyKind(w.Kind)
	if kind != schema.CurrencyFiat && kind != schema.CurrencyCrypto {
		kind = schema.CurrencyFiat
	}
	return schema.Currency{Code: w.Code, Name: w.Name, Symbol: w.Symbol, Kind: kind}
}

func currencyToWire(c schema.Currency) wireCurrency {
	return wireCurrency{Code: c.Code, Name: c.Name, Symbol: c.Symbol, Kind: string(c.Kind)}
}

type wireParticipant struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	TrustScore      int    `json:"trust_score"`
	CompletedTrades int    `json:"completed_trades"`
	ResponseTime    string `json:"response_time"`
	Online          bool   `json:"online"`
}

func (w *wireParticipant) toDomain() schema.Participant {
	if w == nil {
		return schema.Participant{}
	}
	return schema.Participant{
		ID:              w.ID,
		Name:            w.Name,
		TrustScore:      w.TrustScore,
		CompletedTrades: w.CompletedTrades,
		ResponseTime:    w.ResponseTime,
		Online:          w.Online,
	}.WithDerivedBadge()
}

type wirePaymentMethod struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	ProcessingTime string          `json:"processing_time"`
	MinLimit       decimal.Decimal `json:"min_limit"`
	MaxLimit       decimal.Decimal `json:"max_limit"`
}

func (w wirePaymentMethod) toDomain() schema.PaymentMethod {
	return schema.PaymentMethod{
		ID:             w.ID,
		Name:           w.Name,
		Kind:           w.Kind,
		ProcessingTime: w.ProcessingTime,
		MinLimit:       w.MinLimit,
		MaxLimit:       w.MaxLimit,
	}
}

type wireOffer struct {
	ID string `json:"id"`
	// The backend emits either maker or the legacy merchant key.
	Maker                *wireParticipant    `json:"maker,omitempty"`
	Merchant             *wireParticipant    `json:"merchant,omitempty"`
	SellCurrency         wireCurrency        `json:"sell_currency"`
	BuyCurrency          wireCurrency        `json:"buy_currency"`
	SellAmount           decimal.Decimal     `json:"sell_amount"`
	BuyAmount            decimal.Decimal     `json:"buy_amount"`
	ExchangeRate         decimal.Decimal     `json:"exchange_rate"`
	MarginPercent        decimal.Decimal     `json:"margin_percent"`
	PaymentMethods       []wirePaymentMethod `json:"payment_methods,omitempty"`
	PaymentWindowMinutes int                 `json:"payment_window_minutes"`
	MinTrade             decimal.Decimal     `json:"min_trade"`
	MaxTrade             decimal.Decimal     `json:"max_trade"`
	AvailableAmount      decimal.Decimal     `json:"available_amount"`
	Status               string              `json:"status"`
	KYCRequired          bool                `json:"kyc_required"`
	Terms                string              `json:"terms,omitempty"`
	AutoReply            string              `json:"auto_reply_message,omitempty"`
}

func (w wireOffer) toDomain() (schema.Offer, error) {
	maker := w.Maker
	if maker == nil {
		maker = w.Merchant
	}
	if maker == nil {
		return schema.Offer{}, errs.New(component, errs.CodeTransport,
			errs.WithMessage(fmt.Sprintf("offer %s payload missing maker", w.ID)))
	}
	methods := make([]schema.PaymentMethod, 0, len(w.PaymentMethods))
	for _, pm := range w.PaymentMethods {
		methods = append(methods, pm.toDomain())
	}
	return schema.Offer{
		ID:              w.ID,
		Maker:           maker.toDomain(),
		SellCurrency:    w.SellCurrency.toDomain(),
		BuyCurrency:     w.BuyCurrency.toDomain(),
		SellAmount:      w.SellAmount,
		BuyAmount:       w.BuyAmount,
		ExchangeRate:    w.ExchangeRate,
		MarginPercent:   w.MarginPercent,
		PaymentMethods:  methods,
		PaymentWindow:   time.Duration(w.PaymentWindowMinutes) * time.Minute,
		MinTrade:        w.MinTrade,
		MaxTrade:        w.MaxTrade,
		AvailableAmount: w.AvailableAmount,
		Status:          schema.OfferStatus(w.Status),
		KYCRequired:     w.KYCRequired,
		Terms:           w.Terms,
		AutoReply:       w.AutoReply,
	}, nil
}

func offerToWire(o schema.Offer) wireOffer {
	methods := make([]wirePaymentMethod, 0, len(o.PaymentMethods))
	for _, pm := range o.PaymentMethods {
		methods = append(methods, wirePaymentMethod{
			ID:             pm.ID,
			Name:           pm.Name,
			Kind:           pm.Kind,
			ProcessingTime: pm.ProcessingTime,
			MinLimit:       pm.MinLimit,
			MaxLimit:       pm.MaxLimit,
		})
	}
	maker := wireParticipant{
		ID:              o.Maker.ID,
		Name:            o.Maker.Name,
		TrustScore:      o.Maker.TrustScore,
		CompletedTrades: o.Maker.CompletedTrades,
		ResponseTime:    o.Maker.ResponseTime,
		Online:          o.Maker.Online,
	}
	return wireOffer{
		ID:                   o.ID,
		Maker:                &maker,
		SellCurrency:         currencyToWire(o.SellCurrency),
		BuyCurrency:          currencyToWire(o.BuyCurrency),
		SellAmount:           o.SellAmount,
		BuyAmount:            o.BuyAmount,
		ExchangeRate:         o.ExchangeRate,
		MarginPercent:        o.MarginPercent,
		PaymentMethods:       methods,
		PaymentWindowMinutes: int(o.PaymentWindow / time.Minute),
		MinTrade:             o.MinTrade,
		MaxTrade:             o.MaxTrade,
		AvailableAmount:      o.AvailableAmount,
		Status:               string(o.Status),
		KYCRequired:          o.KYCRequired,
		Terms:                o.Terms,
		AutoReply:            o.AutoReply,
	}
}

type wireTrade struct {
	ID      string `json:"id"`
	OfferID string `json:"offer_id"`
	// maker/merchant and taker/buyer are interchangeable on the wire.
	Maker              *wireParticipant  `json:"maker,omitempty"`
	Merchant           *wireParticipant  `json:"merchant,omitempty"`
	Taker              *wireParticipant  `json:"taker,omitempty"`
	Buyer              *wireParticipant  `json:"buyer,omitempty"`
	SellCurrency       wireCurrency      `json:"sell_currency"`
	BuyCurrency        wireCurrency      `json:"buy_currency"`
	SellAmount         decimal.Decimal   `json:"sell_amount"`
	BuyAmount          decimal.Decimal   `json:"buy_amount"`
	ExchangeRate       decimal.Decimal   `json:"exchange_rate"`
	PaymentMethod      wirePaymentMethod `json:"payment_method"`
	EscrowAmount       *decimal.Decimal  `json:"escrow_amount,omitempty"`
	EscrowCurrency     *wireCurrency     `json:"escrow_currency,omitempty"`
	Status             string            `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
	QuoteLockExpiry    time.Time         `json:"quote_lock_expiry"`
	PaymentWindowStart time.Time         `json:"payment_window_start"`
	PaymentWindowEnd   time.Time         `json:"payment_window_end"`
	ChatRoomID         string            `json:"chat_room_id,omitempty"`
	PaymentProofRef    string            `json:"payment_proof_ref,omitempty"`
	DisputeReason      string            `json:"dispute_reason,omitempty"`
}

func (w wireTrade) toDomain() (schema.Trade, error) {
	maker := w.Maker
	if maker == nil {
		maker = w.Merchant
	}
	taker := w.Taker
	if taker == nil {
		taker = w.Buyer
	}
	if maker == nil || taker == nil {
		return schema.Trade{}, errs.New(component, errs.CodeTransport,
			errs.WithMessage(fmt.Sprintf("trade %s payload missing participants", w.ID)))
	}
	status, ok := schema.ParseTradeStatus(w.Status)
	if !ok {
		return schema.Trade{}, errs.New(component, errs.CodeTransport,
			errs.WithMessage(fmt.Sprintf("trade %s has unknown status %q", w.ID, w.Status)))
	}

	// Backends occasionally omit escrow details and chat room ids; default
	// them to safe placeholders instead of failing the whole decode.
	escrowAmount := w.SellAmount
	if w.EscrowAmount != nil {
		escrowAmount = *w.EscrowAmount
	}
	escrowCurrency := w.SellCurrency.toDomain()
	if w.EscrowCurrency != nil {
		escrowCurrency = w.EscrowCurrency.toDomain()
	}
	chatRoomID := w.ChatRoomID
	if chatRoomID == "" {
		chatRoomID = "trade:" + w.ID
	}

	return schema.Trade{
		ID:              w.ID,
		OfferID:         w.OfferID,
		Maker:           maker.toDomain(),
		Taker:           taker.toDomain(),
		SellCurrency:    w.SellCurrency.toDomain(),
		BuyCurrency:     w.BuyCurrency.toDomain(),
		SellAmount:      w.SellAmount,
		BuyAmount:       w.BuyAmount,
		ExchangeRate:    w.ExchangeRate,
		PaymentMethod:   w.PaymentMethod.toDomain(),
		EscrowAmount:    escrowAmount,
		EscrowCurrency:  escrowCurrency,
		Status:          status,
		CreatedAt:       w.CreatedAt,
		QuoteLockExpiry: w.QuoteLockExpiry,
		PaymentWindow:   schema.PaymentWindow{Start: w.PaymentWindowStart, End: w.PaymentWindowEnd},
		ChatRoomID:      chatRoomID,
		PaymentProofRef: w.PaymentProofRef,
		DisputeReason:   w.DisputeReason,
	}, nil
}

type wirePaymentProof struct {
	Ref      string `json:"ref"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type wireDispute struct {
	Reason   string `json:"reason"`
	OpenedBy string `json:"opened_by,omitempty"`
}

type wireMessage struct {
	ID           string            `json:"id"`
	TradeID      string            `json:"trade_id"`
	Kind         string            `json:"kind"`
	SenderID     string            `json:"sender_id,omitempty"`
	Content      string            `json:"content,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	PaymentProof *wirePaymentProof `json:"payment_proof,omitempty"`
	Dispute      *wireDispute      `json:"dispute,omitempty"`
}

func (w wireMessage) toDomain() schema.TradeMessage {
	msg := schema.TradeMessage{
		ID:        w.ID,
		TradeID:   w.TradeID,
		Kind:      schema.MessageKind(w.Kind),
		SenderID:  w.SenderID,
		Content:   w.Content,
		Timestamp: w.Timestamp,
	}
	if w.PaymentProof != nil {
		msg.PaymentProof = &schema.PaymentProof{
			Ref:      w.PaymentProof.Ref,
			FileName: w.PaymentProof.FileName,
			MimeType: w.PaymentProof.MimeType,
			Size:     w.PaymentProof.Size,
		}
	}
	if w.Dispute != nil {
		msg.Dispute = &schema.DisputeDetail{
			Reason:   w.Dispute.Reason,
			OpenedBy: w.Dispute.OpenedBy,
		}
	}
	return msg
}
