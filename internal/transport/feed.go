package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/fxlane/fxlane/config"
	"github.com/fxlane/fxlane/internal/schema"
)

const (
	feedMaxReconnectInterval = 30 * time.Second
	feedReadLimit            = 512 * 1024
)

// MessageFeed streams a trade's message log over the backend websocket.
// The engine consumes it to learn about payment-proof and dispute entries
// without waiting for the next poll tick; the REST message listing remains
// the catch-up source after reconnects.
type MessageFeed struct {
	baseURL   string
	handshake time.Duration
}

// NewMessageFeed constructs a feed from transport settings.
func NewMessageFeed(settings config.BackendSettings) *MessageFeed {
	handshake := settings.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	return &MessageFeed{
		baseURL:   strings.TrimRight(settings.WSURL, "/"),
		handshake: handshake,
	}
}

// Stream subscribes to the trade's message topic. The returned channels
// close when ctx is cancelled. Connection drops reconnect with exponential
// backoff; dial failures are reported on the error channel and retried.
func (f *MessageFeed) Stream(ctx context.Context, tradeID string) (<-chan schema.TradeMessage, <-chan error) {
	messages := make(chan schema.TradeMessage)
	errc := make(chan error, 4)

	endpoint := f.baseURL + "/trades/" + tradeID + "/messages"

	go func() {
		defer close(messages)
		defer close(errc)

		bo := backoff.NewExponentialBackOff()
		bo.MaxInterval = feedMaxReconnectInterval

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			dialCtx, cancel := context.WithTimeout(ctx, f.handshake)
			conn, _, err := websocket.Dial(dialCtx, endpoint, nil)
			cancel()
			if err != nil {
				reportFeedError(errc, fmt.Errorf("dial %s: %w", endpoint, err))
				sleep := bo.NextBackOff()
				if sleep == backoff.Stop {
					sleep = feedMaxReconnectInterval
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(sleep):
				}
				continue
			}
			conn.SetReadLimit(feedReadLimit)
			bo.Reset()

			if !f.readLoop(ctx, conn, messages, errc) {
				return
			}
		}
	}()

	return messages, errc
}

// readLoop pumps frames until the connection drops or ctx ends. It returns
// false when the stream should stop for good.
func (f *MessageFeed) readLoop(ctx context.Context, conn *websocket.Conn, messages chan<- schema.TradeMessage, errc chan<- error) bool {
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "stream closed")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			reportFeedError(errc, fmt.Errorf("read frame: %w", err))
			return true // reconnect
		}
		if msgType != websocket.MessageText {
			continue
		}
		var w wireMessage
		if err := json.Unmarshal(data, &w); err != nil {
			reportFeedError(errc, fmt.Errorf("decode frame: %w", err))
			continue
		}
		select {
		case <-ctx.Done():
			return false
		case messages <- w.toDomain():
		}
	}
}

func reportFeedError(errc chan<- error, err error) {
	select {
	case errc <- err:
	default:
	}
}
