package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kyl3c/claude-code-claw/internal/logging"
)

// Gateway is a websocket Transport. It authenticates with a bearer token,
// identifies itself by subscription id, and reconnects with capped backoff
// when the connection drops.
type Gateway struct {
	url          string
	subscription string
	token        string

	events chan Event
	log    *slog.Logger

	mu     sync.Mutex // serializes writes and conn swaps
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

// outboundFrame is the gateway's message frame.
type outboundFrame struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
	writeTimeout   = 10 * time.Second
)

// Dial connects to the gateway and starts the read loop.
func Dial(ctx context.Context, url, subscription, token string) (*Gateway, error) {
	g := &Gateway{
		url:          url,
		subscription: subscription,
		token:        token,
		events:       make(chan Event, 64),
		log:          logging.ForComponent(logging.CompGateway),
		done:         make(chan struct{}),
	}

	conn, err := g.dial(ctx)
	if err != nil {
		return nil, err
	}
	g.conn = conn

	go g.readLoop(ctx)
	return g, nil
}

func (g *Gateway) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+g.token)
	header.Set("X-Claw-Subscription", g.subscription)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %s: %w", g.url, err)
	}
	return conn, nil
}

// Events yields inbound events until the gateway closes.
func (g *Gateway) Events() <-chan Event {
	return g.events
}

// Send posts one message frame. Writes are serialized; concurrent senders
// are safe.
func (g *Gateway) Send(ctx context.Context, chatID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.conn == nil {
		return fmt.Errorf("gateway is closed")
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	g.conn.SetWriteDeadline(deadline)

	return g.conn.WriteJSON(outboundFrame{Type: "message", ChatID: chatID, Text: text})
}

// Close shuts the gateway down and closes the event channel.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	conn := g.conn
	g.mu.Unlock()

	close(g.done)
	if conn != nil {
		conn.Close()
	}
	return nil
}

// readLoop decodes frames into events, reconnecting on failure until
// closed or the context ends.
func (g *Gateway) readLoop(ctx context.Context) {
	defer close(g.events)

	backoff := initialBackoff
	for {
		g.mu.Lock()
		conn := g.conn
		closed := g.closed
		g.mu.Unlock()
		if closed || conn == nil {
			return
		}

		var event Event
		err := conn.ReadJSON(&event)
		if err == nil {
			backoff = initialBackoff
			select {
			case g.events <- event:
			case <-ctx.Done():
				return
			case <-g.done:
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-g.done:
			return
		default:
		}

		g.log.Warn("gateway read failed, reconnecting", "err", err, "backoff", backoff)
		conn.Close()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		case <-g.done:
			return
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}

		next, derr := g.dial(ctx)
		if derr != nil {
			g.log.Warn("gateway redial failed", "err", derr)
			continue
		}

		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			next.Close()
			return
		}
		g.conn = next
		g.mu.Unlock()
	}
}
