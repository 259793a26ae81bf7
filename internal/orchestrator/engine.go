package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxlane/fxlane/errs"
	"github.com/fxlane/fxlane/internal/identity"
	"github.com/fxlane/fxlane/internal/schema"
	"github.com/fxlane/fxlane/internal/transport"
)

const component = "orchestrator"

const (
	defaultPollInterval = 6 * time.Second
	defaultFailureLimit = 3
	watchBuffer         = 16
)

// Config tunes the reconciliation loop.
type Config struct {
	PollInterval time.Duration
	FailureLimit int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.FailureLimit <= 0 {
		c.FailureLimit = defaultFailureLimit
	}
	return c
}

// Update is pushed on the watch channel whenever the tracked trade changes.
// Err is set when polling has failed persistently; the trade view is then
// stale but otherwise intact.
type Update struct {
	TradeID string
	Status  schema.TradeStatus
	Err     error
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithLogger routes engine logs to the given logger.
func WithLogger(log Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics wires engine counters.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// Engine owns the single in-flight trade of a marketplace session. All
// transitions are checked locally before touching the network, and the local
// view is only ever advanced from authoritative backend responses.
type Engine struct {
	backend Backend
	ids     *identity.Resolver
	cfg     Config
	log     Logger
	metrics Metrics

	mu       sync.Mutex
	current  *schema.Trade
	messages []schema.TradeMessage
	loop     *syncLoop
	closed   bool

	watch chan Update
}

// New builds an engine over the given backend and identity resolver.
func New(backend Backend, ids *identity.Resolver, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		ids:     ids,
		cfg:     cfg.withDefaults(),
		log:     nopLogger{},
		metrics: nopMetrics{},
		watch:   make(chan Update, watchBuffer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Watch exposes the trade update stream. Slow consumers drop updates rather
// than block the engine; Snapshot always has the current view.
func (e *Engine) Watch() <-chan Update {
	return e.watch
}

// Snapshot returns a copy of the tracked trade, if any.
func (e *Engine) Snapshot() (schema.Trade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return schema.Trade{}, false
	}
	return *e.current, true
}

// Messages returns a copy of the locally observed message log.
func (e *Engine) Messages() []schema.TradeMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]schema.TradeMessage, len(e.messages))
	copy(out, e.messages)
	return out
}

// CreateTrade opens a trade against the offer. The amount must fall inside
// the offer's effective bounds and, when the caller is not the offer's maker,
// the caller must have no other active trade. Both checks run before any
// mutation reaches the backend; nothing is recorded locally until the backend
// confirms creation.
func (e *Engine) CreateTrade(ctx context.Context, offer schema.Offer, amount decimal.Decimal, paymentMethodID string) (schema.Trade, error) {
	userID, err := e.ids.UserID(ctx)
	if err != nil {
		return schema.Trade{}, err
	}
	if !offer.AcceptsAmount(amount) {
		min, max := offer.TradeBounds()
		return schema.Trade{}, errs.New(component, errs.CodeInvalidAmount,
			errs.WithMessage(fmt.Sprintf("amount %s outside bounds [%s, %s]", amount, min, max)))
	}
	if paymentMethodID != "" {
		if _, ok := offer.FindPaymentMethod(paymentMethodID); !ok {
			return schema.Trade{}, errs.New(component, errs.CodeNotFound,
				errs.WithMessage("payment method not offered: "+paymentMethodID))
		}
	}
	if userID != offer.Maker.ID {
		trades, err := e.backend.ListTrades(ctx, transport.TradeQuery{ParticipantID: userID})
		if err != nil {
			return schema.Trade{}, err
		}
		for _, t := range trades {
			if t.Taker.ID == userID && t.Status.CountsActive() {
				return schema.Trade{}, errs.New(component, errs.CodeTradeLimit,
					errs.WithMessage("active trade "+t.ID+" must finish first"))
			}
		}
	}

	trade, err := e.backend.CreateTrade(ctx, offer.ID, transport.TradeRequest{
		Amount:          amount,
		PaymentMethodID: paymentMethodID,
		TakerID:         userID,
	})
	if err != nil {
		return schema.Trade{}, err
	}
	e.metrics.RecordTradeCreated(ctx)
	e.adopt(trade)
	e.log.Info("trade created",
		"trade_id", trade.ID, "offer_id", offer.ID, "amount", amount.String(), "status", string(trade.Status))
	return trade, nil
}

// Attach loads an existing trade and starts tracking it. Makers use this to
// pick up an incoming trade opened against one of their offers.
func (e *Engine) Attach(ctx context.Context, tradeID string) (schema.Trade, error) {
	trade, err := e.backend.GetTrade(ctx, tradeID)
	if err != nil {
		return schema.Trade{}, err
	}
	if _, err := e.ids.UserID(ctx); err != nil {
		return schema.Trade{}, err
	}
	e.adopt(trade)
	return trade, nil
}

// AcceptIncoming attaches the given trade and accepts it as maker.
func (e *Engine) AcceptIncoming(ctx context.Context, tradeID string) (schema.Trade, error) {
	if _, err := e.Attach(ctx, tradeID); err != nil {
		return schema.Trade{}, err
	}
	return e.RequestTransition(ctx, schema.EventAccept)
}

// RequestTransition validates the event against the tracked trade's status,
// the caller's role, and any payload preconditions, then asks the backend to
// perform it. The local view stays untouched when the backend refuses; on
// success the returned trade is adopted and one confirmatory reconciliation
// is scheduled.
func (e *Engine) RequestTransition(ctx context.Context, event schema.TradeEvent) (schema.Trade, error) {
	return e.transition(ctx, event, "")
}

func (e *Engine) transition(ctx context.Context, event schema.TradeEvent, reason string) (schema.Trade, error) {
	cur, hasProof, err := e.snapshotSession()
	if err != nil {
		return schema.Trade{}, err
	}
	if _, ok := schema.Transition(cur.Status, event); !ok {
		return schema.Trade{}, errs.New(component, errs.CodeIllegalTransition,
			errs.WithMessage(fmt.Sprintf("%s not legal from %s", event, cur.Status)))
	}
	role, err := e.ids.Role(ctx, cur)
	if err != nil {
		return schema.Trade{}, err
	}
	if !roleAllowed(initiatorsFor(cur, event), role) {
		return schema.Trade{}, errs.New(component, errs.CodeUnauthorized,
			errs.WithMessage(fmt.Sprintf("%s may not request %s", role, event)))
	}
	if event == schema.EventConfirmPayment && !hasProof {
		return schema.Trade{}, errs.New(component, errs.CodeIllegalTransition,
			errs.WithMessage("payment proof required before confirmation"))
	}

	var updated schema.Trade
	if event == schema.EventDispute {
		updated, err = e.backend.OpenDispute(ctx, cur.ID, reason)
	} else {
		action, ok := actionFor(event)
		if !ok {
			return schema.Trade{}, errs.New(component, errs.CodeUnauthorized,
				errs.WithMessage(string(event)+" is backend-driven and cannot be requested"))
		}
		updated, err = e.backend.TradeAction(ctx, cur.ID, action, nil)
	}
	if err != nil {
		return schema.Trade{}, err
	}
	e.metrics.RecordTransition(ctx, string(event))
	e.applyTransition(cur.ID, updated)
	e.log.Info("trade transition",
		"trade_id", cur.ID, "event", string(event), "from", string(cur.Status), "to", string(updated.Status))
	return updated, nil
}

// UploadPaymentProof uploads a receipt and marks the payment as sent. The
// upload only happens once the payment_sent transition is known to be legal
// for the caller.
func (e *Engine) UploadPaymentProof(ctx context.Context, proof transport.ProofUpload) (schema.Trade, error) {
	cur, _, err := e.snapshotSession()
	if err != nil {
		return schema.Trade{}, err
	}
	if _, ok := schema.Transition(cur.Status, schema.EventPaymentSent); !ok {
		return schema.Trade{}, errs.New(component, errs.CodeIllegalTransition,
			errs.WithMessage(fmt.Sprintf("payment proof not accepted in %s", cur.Status)))
	}
	role, err := e.ids.Role(ctx, cur)
	if err != nil {
		return schema.Trade{}, err
	}
	if role != cur.PayerRole() {
		return schema.Trade{}, errs.New(component, errs.CodeUnauthorized,
			errs.WithMessage("only the paying side uploads proof"))
	}
	msg, err := e.backend.UploadPaymentProof(ctx, cur.ID, proof)
	if err != nil {
		return schema.Trade{}, err
	}
	e.ObserveMessage(msg)
	return e.transition(ctx, schema.EventPaymentSent, "")
}

// ConfirmPayment acknowledges receipt of the taker's payment.
func (e *Engine) ConfirmPayment(ctx context.Context) (schema.Trade, error) {
	return e.transition(ctx, schema.EventConfirmPayment, "")
}

// SignRelease signs the escrow release, completing the trade.
func (e *Engine) SignRelease(ctx context.Context) (schema.Trade, error) {
	return e.transition(ctx, schema.EventRelease, "")
}

// OpenDispute escalates the trade to arbitration.
func (e *Engine) OpenDispute(ctx context.Context, reason string) (schema.Trade, error) {
	return e.transition(ctx, schema.EventDispute, reason)
}

// Cancel abandons the trade before it is accepted.
func (e *Engine) Cancel(ctx context.Context) (schema.Trade, error) {
	return e.transition(ctx, schema.EventCancel, "")
}

// SubmitRating rates the counterparty once the trade has completed and then
// clears the session.
func (e *Engine) SubmitRating(ctx context.Context, rating transport.Rating) error {
	cur, _, err := e.snapshotSession()
	if err != nil {
		return err
	}
	if cur.Status != schema.StatusCompleted {
		return errs.New(component, errs.CodeIllegalTransition,
			errs.WithMessage("rating requires a completed trade, have "+string(cur.Status)))
	}
	if err := e.backend.SubmitRating(ctx, cur.ID, rating); err != nil {
		return err
	}
	e.Abandon()
	return nil
}

// PublishOffer validates the offer invariant locally and creates the offer.
func (e *Engine) PublishOffer(ctx context.Context, offer schema.Offer) (schema.Offer, error) {
	if err := offer.Validate(); err != nil {
		return schema.Offer{}, err
	}
	return e.backend.CreateOffer(ctx, offer)
}

// PauseOffer withdraws an offer from the book without cancelling it.
func (e *Engine) PauseOffer(ctx context.Context, offerID string) (schema.Offer, error) {
	return e.backend.UpdateOfferStatus(ctx, offerID, schema.OfferPaused)
}

// ResumeOffer puts a paused offer back on the book.
func (e *Engine) ResumeOffer(ctx context.Context, offerID string) (schema.Offer, error) {
	return e.backend.UpdateOfferStatus(ctx, offerID, schema.OfferActive)
}

// ObserveMessage folds a live chat message into the local log. Messages for
// other trades are ignored.
func (e *Engine) ObserveMessage(msg schema.TradeMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || msg.TradeID != e.current.ID {
		return
	}
	e.messages = append(e.messages, msg)
	if msg.Kind == schema.MessagePaymentProof && e.current.PaymentProofRef == "" {
		e.current.PaymentProofRef = msg.ID
	}
}

// RefreshMessages replaces the local log with the backend's, for catch-up
// after a feed reconnect.
func (e *Engine) RefreshMessages(ctx context.Context) error {
	cur, _, err := e.snapshotSession()
	if err != nil {
		return err
	}
	msgs, err := e.backend.ListMessages(ctx, cur.ID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.ID != cur.ID {
		return nil
	}
	e.messages = msgs
	return nil
}

// Abandon drops the tracked trade and stops its reconciliation loop. Any
// in-flight poll result for it is discarded on arrival.
func (e *Engine) Abandon() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopSyncLocked()
	e.current = nil
	e.messages = nil
}

// Close shuts the engine down. It stops the reconciliation loop, waits for
// it to exit, and closes the watch channel.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	loop := e.loop
	e.stopSyncLocked()
	e.current = nil
	e.messages = nil
	e.mu.Unlock()
	if loop != nil {
		loop.wg.Wait()
	}
	close(e.watch)
}

// adopt replaces the tracked trade with a fresh backend result.
func (e *Engine) adopt(trade schema.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.current == nil || e.current.ID != trade.ID {
		e.stopSyncLocked()
		e.messages = nil
	}
	t := trade
	e.current = &t
	e.emitLocked(Update{TradeID: trade.ID, Status: trade.Status})
	if trade.Status.ShouldSync() {
		e.startSyncLocked(trade.ID)
	}
}

// applyTransition installs a backend transition response, unless the session
// moved on while the request was in flight.
func (e *Engine) applyTransition(tradeID string, updated schema.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.current == nil || e.current.ID != tradeID {
		return
	}
	t := updated
	e.current = &t
	e.emitLocked(Update{TradeID: updated.ID, Status: updated.Status})
	if updated.Status.Terminal() {
		e.stopSyncLocked()
		return
	}
	e.startSyncLocked(updated.ID)
	if e.loop != nil {
		e.loop.pokeSoon()
	}
}

func (e *Engine) snapshotSession() (schema.Trade, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return schema.Trade{}, false, errs.New(component, errs.CodeNotFound,
			errs.WithMessage("no trade in session"))
	}
	hasProof := e.current.PaymentProofRef != ""
	for _, m := range e.messages {
		if m.Kind == schema.MessagePaymentProof {
			hasProof = true
			break
		}
	}
	return *e.current, hasProof, nil
}

func (e *Engine) emitLocked(u Update) {
	if e.closed {
		return
	}
	select {
	case e.watch <- u:
	default:
	}
}
