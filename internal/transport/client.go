package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/fxlane/fxlane/config"
	"github.com/fxlane/fxlane/errs"
	"github.com/fxlane/fxlane/internal/schema"
)

const component = "transport"

const (
	retryInitialInterval = 200 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
	idempotencyHeader    = "X-Idempotency-Key"
)

// Action names a backend trade transition endpoint.
type Action string

const (
	// ActionAccept is the maker accepting a pending trade.
	ActionAccept Action = "accept"
	// ActionPaymentSent marks payment proof as submitted.
	ActionPaymentSent Action = "payment-sent"
	// ActionConfirmPayment acknowledges payment receipt.
	ActionConfirmPayment Action = "confirm-payment"
	// ActionComplete signs the fund release.
	ActionComplete Action = "complete"
	// ActionCancel abandons a pending trade.
	ActionCancel Action = "cancel"
	// ActionDispute opens a dispute.
	ActionDispute Action = "dispute"
)

// TradeRequest carries the parameters for creating a trade from an offer.
type TradeRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID string          `json:"payment_method_id"`
	TakerID         string          `json:"taker_id"`
}

// OfferQuery filters offer listings.
type OfferQuery struct {
	SellCurrency string
	BuyCurrency  string
	MakerID      string
}

// TradeQuery filters trade listings.
type TradeQuery struct {
	ParticipantID string
}

// ProofUpload is a payment receipt destined for the multipart proof endpoint.
type ProofUpload struct {
	FileName string
	MimeType string
	Content  []byte
}

// Rating carries the post-completion rating payload.
type Rating struct {
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

// Client talks to the marketplace backend over its REST envelope API.
// Idempotent reads retry with exponential backoff; mutating calls never
// retry automatically and are throttled by a token bucket.
type Client struct {
	http     *http.Client
	baseURL  string
	limiter  *rate.Limiter
	retryMax int
}

// NewClient constructs a backend client from transport settings.
func NewClient(settings config.BackendSettings) *Client {
	timeout := settings.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryMax := settings.RetryMaxAttempts
	if retryMax <= 0 {
		retryMax = 3
	}
	perSecond := settings.MutationsPerSecond
	if perSecond <= 0 {
		perSecond = 2
	}
	httpClient := new(http.Client)
	httpClient.Timeout = timeout
	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimRight(settings.BaseURL, "/"),
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		retryMax: retryMax,
	}
}

// ListOffers fetches offers matching the query.
func (c *Client) ListOffers(ctx context.Context, query OfferQuery) ([]schema.Offer, error) {
	params := url.Values{}
	if query.SellCurrency != "" {
		params.Set("sell_currency", query.SellCurrency)
	}
	if query.BuyCurrency != "" {
		params.Set("buy_currency", query.BuyCurrency)
	}
	if query.MakerID != "" {
		params.Set("maker", query.MakerID)
	}
	path := "/offers"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var raw []wireOffer
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	offers := make([]schema.Offer, 0, len(raw))
	for _, w := range raw {
		offer, err := w.toDomain()
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// CreateOffer publishes a new offer and returns the backend's view of it.
func (c *Client) CreateOffer(ctx context.Context, offer schema.Offer) (schema.Offer, error) {
	var raw wireOffer
	if err := c.mutateJSON(ctx, "/offers", offerToWire(offer), &raw); err != nil {
		return schema.Offer{}, err
	}
	return raw.toDomain()
}

// UpdateOfferStatus toggles an offer's lifecycle status (maker only).
func (c *Client) UpdateOfferStatus(ctx context.Context, offerID string, status schema.OfferStatus) (schema.Offer, error) {
	body := struct {
		Status string `json:"status"`
	}{Status: string(status)}
	var raw wireOffer
	if err := c.mutateJSON(ctx, "/offers/"+url.PathEscape(offerID)+"/status", body, &raw); err != nil {
		return schema.Offer{}, err
	}
	return raw.toDomain()
}

// CreateTrade opens a trade against the offer.
func (c *Client) CreateTrade(ctx context.Context, offerID string, req TradeRequest) (schema.Trade, error) {
	var raw wireTrade
	if err := c.mutateJSON(ctx, "/offers/"+url.PathEscape(offerID)+"/trade", req, &raw); err != nil {
		return schema.Trade{}, err
	}
	return raw.toDomain()
}

// ListTrades fetches trades visible to the given participant.
func (c *Client) ListTrades(ctx context.Context, query TradeQuery) ([]schema.Trade, error) {
	path := "/trades"
	if query.ParticipantID != "" {
		path += "?participant=" + url.QueryEscape(query.ParticipantID)
	}
	var raw []wireTrade
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	trades := make([]schema.Trade, 0, len(raw))
	for _, w := range raw {
		trade, err := w.toDomain()
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// GetTrade fetches the authoritative state of one trade.
func (c *Client) GetTrade(ctx context.Context, tradeID string) (schema.Trade, error) {
	var raw wireTrade
	if err := c.getJSON(ctx, "/trades/"+url.PathEscape(tradeID), &raw); err != nil {
		return schema.Trade{}, err
	}
	return raw.toDomain()
}

// TradeAction triggers a status transition endpoint and returns the
// backend's resulting trade state.
func (c *Client) TradeAction(ctx context.Context, tradeID string, action Action, body any) (schema.Trade, error) {
	var raw wireTrade
	path := "/trades/" + url.PathEscape(tradeID) + "/" + string(action)
	if err := c.mutateJSON(ctx, path, body, &raw); err != nil {
		return schema.Trade{}, err
	}
	return raw.toDomain()
}

// OpenDispute opens a dispute with the given reason.
func (c *Client) OpenDispute(ctx context.Context, tradeID, reason string) (schema.Trade, error) {
	body := struct {
		Reason string `json:"reason"`
	}{Reason: reason}
	return c.TradeAction(ctx, tradeID, ActionDispute, body)
}

// UploadPaymentProof posts a multipart payment receipt and returns the
// recorded payment-proof message.
func (c *Client) UploadPaymentProof(ctx context.Context, tradeID string, proof ProofUpload) (schema.TradeMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return schema.TradeMessage{}, errs.New(component, errs.CodeTransport,
			errs.WithMessage("mutation throttle interrupted"), errs.WithCause(err))
	}

	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("proof", proof.FileName)
	if err != nil {
		return schema.TradeMessage{}, errs.New(component, errs.CodeTransport,
			errs.WithMessage("build multipart body"), errs.WithCause(err))
	}
	if _, err := part.Write(proof.Content); err != nil {
		return schema.TradeMessage{}, errs.New(component, errs.CodeTransport,
			errs.WithMessage("write multipart body"), errs.WithCause(err))
	}
	if proof.MimeType != "" {
		if err := writer.WriteField("mime_type", proof.MimeType); err != nil {
			return schema.TradeMessage{}, errs.New(component, errs.CodeTransport,
				errs.WithMessage("write multipart field"), errs.WithCause(err))
		}
	}
	if err := writer.Close(); err != nil {
		return schema.TradeMessage{}, errs.New(component, errs.CodeTransport,
			errs.WithMessage("finalize multipart body"), errs.WithCause(err))
	}

	path := "/trades/" + url.PathEscape(tradeID) + "/payment-proof"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return schema.TradeMessage{}, errs.New(component, errs.CodeTransport,
			errs.WithMessage("create request"), errs.WithCause(err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(idempotencyHeader, uuid.NewString())

	var raw wireMessage
	if err := c.execute(req, &raw); err != nil {
		return schema.TradeMessage{}, err
	}
	return raw.toDomain(), nil
}

// SubmitRating posts a rating for a completed trade.
func (c *Client) SubmitRating(ctx context.Context, tradeID string, rating Rating) error {
	return c.mutateJSON(ctx, "/trades/"+url.PathEscape(tradeID)+"/rating", rating, nil)
}

// ListMessages fetches the full message log for a trade.
func (c *Client) ListMessages(ctx context.Context, tradeID string) ([]schema.TradeMessage, error) {
	var raw []wireMessage
	if err := c.getJSON(ctx, "/trades/"+url.PathEscape(tradeID)+"/messages", &raw); err != nil {
		return nil, err
	}
	messages := make([]schema.TradeMessage, 0, len(raw))
	for _, w := range raw {
		messages = append(messages, w.toDomain())
	}
	return messages, nil
}

// getJSON performs an idempotent GET with bounded exponential retry.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval

	var lastErr error
	for attempt := 0; attempt < c.retryMax; attempt++ {
		if attempt > 0 {
			sleep := bo.NextBackOff()
			if sleep == backoff.Stop {
				break
			}
			select {
			case <-ctx.Done():
				return errs.New(component, errs.CodeTransport,
					errs.WithMessage("retry interrupted"), errs.WithCause(ctx.Err()))
			case <-time.After(sleep):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return errs.New(component, errs.CodeTransport,
				errs.WithMessage("create request"), errs.WithCause(err))
		}
		req.Header.Set("Accept", "application/json")
		if err := c.execute(req, out); err != nil {
			lastErr = err
			if retryable(err) {
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

// mutateJSON performs a non-retried, rate-limited POST. A transport failure
// here must never be interpreted as partial success by callers.
func (c *Client) mutateJSON(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.New(component, errs.CodeTransport,
			errs.WithMessage("mutation throttle interrupted"), errs.WithCause(err))
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errs.New(component, errs.CodeTransport,
				errs.WithMessage("encode request body"), errs.WithCause(err))
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return errs.New(component, errs.CodeTransport,
			errs.WithMessage("create request"), errs.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(idempotencyHeader, uuid.NewString())
	return c.execute(req, out)
}

// execute runs the request, maps HTTP and envelope failures onto the error
// taxonomy, and decodes the envelope data into out when provided.
func (c *Client) execute(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errs.New(component, errs.CodeTransport,
			errs.WithMessage("request failed"), errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(component, errs.CodeTransport,
			errs.WithMessage("read response"), errs.WithCause(err), errs.WithHTTP(resp.StatusCode))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(component, errs.CodeNotFound, errs.WithHTTP(resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.New(component, errs.CodeUnauthorized, errs.WithHTTP(resp.StatusCode))
	case resp.StatusCode == http.StatusConflict:
		return envelopeError(raw, errs.CodeConflict, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return envelopeError(raw, errs.CodeTransport, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errs.New(component, errs.CodeTransport,
			errs.WithMessage("decode envelope"), errs.WithCause(err), errs.WithHTTP(resp.StatusCode))
	}
	if !env.Success {
		// A 2xx with success=false is the backend refusing on its own
		// authority, typically a race with the other party.
		return envelopeError(raw, errs.CodeConflict, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return errs.New(component, errs.CodeTransport,
			errs.WithMessage("envelope missing data"), errs.WithHTTP(resp.StatusCode))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errs.New(component, errs.CodeTransport,
			errs.WithMessage("decode envelope data"), errs.WithCause(err), errs.WithHTTP(resp.StatusCode))
	}
	return nil
}

func envelopeError(raw []byte, fallback errs.Code, status int) error {
	var env envelope
	opts := []errs.Option{errs.WithHTTP(status)}
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		opts = append(opts, errs.WithRawCode(env.Error.Code), errs.WithRawMessage(env.Error.Message))
		switch env.Error.Code {
		case "not_found":
			fallback = errs.CodeNotFound
		case "unauthorized":
			fallback = errs.CodeUnauthorized
		}
	}
	return errs.New(component, fallback, opts...)
}

// retryable reports whether a GET failure is worth another attempt: network
// errors and 5xx responses only.
func retryable(err error) bool {
	var e *errs.E
	if !errors.As(err, &e) {
		return false
	}
	if e.Code != errs.CodeTransport {
		return false
	}
	return e.HTTP == 0 || e.HTTP >= 500
}
