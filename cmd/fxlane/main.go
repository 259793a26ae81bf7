// Command fxlane runs the marketplace trade daemon: it keeps one trade
// session synchronized with the backend and exposes a small local control
// API for the user interface.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc"

	"github.com/fxlane/fxlane/config"
	"github.com/fxlane/fxlane/errs"
	"github.com/fxlane/fxlane/internal/identity"
	"github.com/fxlane/fxlane/internal/orchestrator"
	"github.com/fxlane/fxlane/internal/schema"
	"github.com/fxlane/fxlane/internal/telemetry"
	"github.com/fxlane/fxlane/internal/transport"
)

const (
	defaultListenAddr        = "127.0.0.1:7420"
	readHeaderTimeout        = 5 * time.Second
	shutdownTimeout          = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	cfgPath := os.Getenv("FXLANE_CONFIG")
	listenAddr := envOr("FXLANE_LISTEN", defaultListenAddr)
	userID := os.Getenv("FXLANE_USER_ID")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := buildLogger(cfg.Environment)
	logger.Info("configuration initialised", "env", string(cfg.Environment), "backend", cfg.Backend.BaseURL)

	provider, err := telemetry.NewProvider(ctx, cfg.Telemetry, cfg.Environment)
	if err != nil {
		logger.Error("initialize telemetry", "error", err)
		os.Exit(1)
	}
	instruments, err := telemetry.NewInstruments(provider.Meter("fxlane"))
	if err != nil {
		logger.Error("register metrics", "error", err)
		os.Exit(1)
	}

	client := transport.NewClient(cfg.Backend)
	feed := transport.NewMessageFeed(cfg.Backend)
	ids := identity.NewResolver(identity.Static(userID))

	engine := orchestrator.New(client, ids, orchestrator.Config{
		PollInterval: cfg.Sync.Interval,
		FailureLimit: cfg.Sync.FailureLimit,
	}, orchestrator.WithLogger(logger), orchestrator.WithMetrics(instruments))

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() { watchTrade(ctx, logger, engine) })
	lifecycle.Go(func() { pumpMessages(ctx, logger, engine, feed) })

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           newMux(engine),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control API failed", "error", err)
			cancel()
		}
	})
	logger.Info("fxlane started", "listen", listenAddr)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("control API shutdown", "error", err)
	}
	engine.Close()
	lifecycle.Wait()

	telemetryCtx, telemetryCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer telemetryCancel()
	if err := provider.Shutdown(telemetryCtx); err != nil {
		logger.Error("telemetry shutdown", "error", err)
	}
	logger.Info("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func buildLogger(env config.Environment) *slog.Logger {
	level := slog.LevelInfo
	if env == config.EnvDev {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// watchTrade logs every tracked-trade change; persistent poll failures
// surface here as warnings rather than crashes.
func watchTrade(ctx context.Context, logger *slog.Logger, engine *orchestrator.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-engine.Watch():
			if !ok {
				return
			}
			if u.Err != nil {
				logger.Error("trade view stale", "trade_id", u.TradeID, "error", u.Err)
				continue
			}
			hint := schema.HintFor(u.Status)
			logger.Info("trade updated",
				"trade_id", u.TradeID, "status", string(u.Status),
				"headline", hint.Headline, "urgency", string(hint.Urgency))
		}
	}
}

// pumpMessages tails the live chat feed for whichever trade is in session
// and folds messages into the engine. On feed errors the local log is
// refreshed wholesale to cover the gap.
func pumpMessages(ctx context.Context, logger *slog.Logger, engine *orchestrator.Engine, feed *transport.MessageFeed) {
	var (
		streamCancel context.CancelFunc
		tradeID      string
	)
	defer func() {
		if streamCancel != nil {
			streamCancel()
		}
	}()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		trade, ok := engine.Snapshot()
		if !ok || trade.ID == tradeID {
			continue
		}
		if streamCancel != nil {
			streamCancel()
		}
		tradeID = trade.ID
		streamCtx, cancel := context.WithCancel(ctx)
		streamCancel = cancel
		msgs, errors := feed.Stream(streamCtx, trade.ID)
		go func(id string) {
			for {
				select {
				case <-streamCtx.Done():
					return
				case msg, open := <-msgs:
					if !open {
						return
					}
					engine.ObserveMessage(msg)
				case err, open := <-errors:
					if !open {
						return
					}
					logger.Debug("message feed interrupted", "trade_id", id, "error", err)
					if err := engine.RefreshMessages(streamCtx); err != nil {
						logger.Debug("message catch-up failed", "trade_id", id, "error", err)
					}
				}
			}
		}(trade.ID)
	}
}

type tradeView struct {
	Trade    schema.Trade            `json:"trade"`
	Hint     schema.PresentationHint `json:"hint"`
	Messages []schema.TradeMessage   `json:"messages"`
}

type actionRequest struct {
	Event  schema.TradeEvent `json:"event"`
	Reason string            `json:"reason,omitempty"`
}

func newMux(engine *orchestrator.Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /v1/trade", func(w http.ResponseWriter, _ *http.Request) {
		trade, ok := engine.Snapshot()
		if !ok {
			writeError(w, errs.New("api", errs.CodeNotFound, errs.WithMessage("no trade in session")))
			return
		}
		writeJSON(w, http.StatusOK, tradeView{
			Trade:    trade,
			Hint:     schema.HintFor(trade.Status),
			Messages: engine.Messages(),
		})
	})
	mux.HandleFunc("POST /v1/trade/action", func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errs.New("api", errs.CodeIllegalTransition, errs.WithMessage("malformed action request")))
			return
		}
		var (
			trade schema.Trade
			err   error
		)
		if req.Event == schema.EventDispute {
			trade, err = engine.OpenDispute(r.Context(), req.Reason)
		} else {
			trade, err = engine.RequestTransition(r.Context(), req.Event)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tradeView{Trade: trade, Hint: schema.HintFor(trade.Status)})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.CodeOf(err) {
	case errs.CodeNotFound:
		status = http.StatusNotFound
	case errs.CodeUnauthorized:
		status = http.StatusForbidden
	case errs.CodeIllegalTransition, errs.CodeInvalidAmount, errs.CodeTradeLimit:
		status = http.StatusUnprocessableEntity
	case errs.CodeConflict:
		status = http.StatusConflict
	case errs.CodeTransport:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": string(errs.CodeOf(err))})
}
