package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callsession/signal"
)

// DefaultWriteTimeout bounds a single frame write when the context carries no
// deadline of its own.
const DefaultWriteTimeout = 10 * time.Second

// ErrClosed indicates a send on a gateway whose connection was closed.
var ErrClosed = errors.New("gateway connection closed")

// Frame is the wire shape of one outbound call event: the conversation the
// event belongs to plus the encoded signaling envelope.
type Frame struct {
	ConversationID string          `json:"conversationId"`
	Event          json.RawMessage `json:"event"`
}

// Gateway sends call events over one WebSocket connection.
type Gateway struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Dial connects to the signaling endpoint at url.
func Dial(ctx context.Context, url string) (*Gateway, error) {
	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"url":      url,
	}).Info("Connecting to signaling endpoint")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial signaling endpoint: %w", err)
	}
	return NewGateway(conn)
}

// NewGateway wraps an established WebSocket connection.
func NewGateway(conn *websocket.Conn) (*Gateway, error) {
	if conn == nil {
		return nil, errors.New("websocket connection cannot be nil")
	}
	return &Gateway{conn: conn}, nil
}

// SendCallEvent encodes and writes one call event frame.
func (g *Gateway) SendCallEvent(ctx context.Context, conversationID string, msg signal.Message) error {
	event, err := signal.Encode(msg)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Frame{ConversationID: conversationID, Event: event})
	if err != nil {
		return fmt.Errorf("failed to encode call event frame: %w", err)
	}

	deadline := time.Now().Add(DefaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if err := g.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := g.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write call event: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":        "SendCallEvent",
		"conversation_id": conversationID,
		"type":            msg.Kind(),
		"bytes":           len(payload),
	}).Debug("Call event sent")
	return nil
}

// Close shuts the connection down. Safe to call more than once.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true

	// Best effort close handshake before tearing the connection down.
	_ = g.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return g.conn.Close()
}
