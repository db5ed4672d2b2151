// push.go implements the user-channel WebSocket adapter.
//
// The user channel delivers trade fills in real time, ahead of both the
// REST poller and chain finality. The adapter auto-reconnects with
// exponential backoff (1s doubling to 30s, reset after a successful
// connect) and a read deadline so silent server failures are detected
// within ~2 missed pings.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"polymirror/pkg/types"
)

const (
	pingInterval     = 50 * time.Second // how often we send PING to keep alive
	readTimeout      = 90 * time.Second // ~2 missed pings triggers reconnect
	maxReconnectWait = 30 * time.Second // cap on exponential backoff
	writeTimeout     = 10 * time.Second // deadline for outgoing messages
)

// PushFeed maintains the user WebSocket connection and forwards executed
// trades to the fill handler.
type PushFeed struct {
	url     string
	auth    *types.WSAuth // nil = unauthenticated subscription
	handler FillHandler
	logger  *slog.Logger

	connMu sync.Mutex // protects conn
	conn   *websocket.Conn
}

// NewPushFeed creates a user-channel push adapter.
func NewPushFeed(wsURL string, auth *types.WSAuth, handler FillHandler, logger *slog.Logger) *PushFeed {
	return &PushFeed{
		url:     wsURL,
		auth:    auth,
		handler: handler,
		logger:  logger.With("component", "ws_user"),
	}
}

func (f *PushFeed) Name() string { return "push" }

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *PushFeed) Run(ctx context.Context) {
	backoff := time.Second

	for {
		connected, err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			f.logger.Info("push feed stopped")
			return
		}
		if connected {
			backoff = time.Second
		}

		f.logger.Warn("websocket disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			f.logger.Info("push feed stopped")
			return
		case <-time.After(backoff):
		}

		// Exponential backoff: 1s, 2s, 4s, 8s, ..., 30s max
		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// connectAndRead reports whether the connection and subscription succeeded,
// so the caller can reset its backoff even when the read later fails.
func (f *PushFeed) connectAndRead(ctx context.Context) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	sub := types.WSSubscribeMsg{
		Type:    "user",
		Auth:    f.auth,
		Markets: []string{}, // empty = every market the account touches
	}
	if err := f.writeJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	// Read loop with deadline so we reconnect if the server goes silent
	for {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

// dispatchMessage extracts executed trades from a raw frame. The server
// sends either a single event object or an array of them.
func (f *PushFeed) dispatchMessage(data []byte) {
	var events []types.WSTradeEvent
	if err := json.Unmarshal(data, &events); err != nil {
		var single types.WSTradeEvent
		if err := json.Unmarshal(data, &single); err != nil {
			f.logger.Debug("ignoring non-json ws message", "data", string(data))
			return
		}
		events = []types.WSTradeEvent{single}
	}

	for _, evt := range events {
		if !evt.IsTrade() {
			continue
		}
		fill, err := NormalizeWSTrade(evt)
		if err != nil {
			f.logger.Warn("skipping malformed ws trade", "error", err)
			continue
		}
		f.handler(fill)
	}
}

func (f *PushFeed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *PushFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.connMu.Lock()
			conn := f.conn
			f.connMu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}
