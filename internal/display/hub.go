package display

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tidyhost/engage/internal/logger"
)

// Message is the wire envelope of the display feed. Server-to-session
// messages carry events and capability requests; session-to-server messages
// carry capability replies.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

const (
	// MessageTypeEvent carries a display event (notification added/removed,
	// onboarding banner or prompt).
	MessageTypeEvent = "event"

	// MessageTypeRequest asks the session to exercise a browser-held
	// capability and reply with the correlated result.
	MessageTypeRequest = "request"

	// MessageTypeReply is the session's answer to a request.
	MessageTypeReply = "reply"
)

// requestTimeout bounds how long a capability request waits for the session.
const requestTimeout = 30 * time.Second

// writeWait bounds a single websocket write.
const writeWait = 10 * time.Second

// session serializes writes to one connection. The websocket library allows
// at most one concurrent writer per connection, and broadcasts and capability
// requests write from independent goroutines.
type session struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *session) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages the connected admin-session websockets. It broadcasts display
// events to every connection and routes capability requests to one of them,
// correlating replies by request ID.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*websocket.Conn]*session
	pending map[string]chan Message

	logger *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		conns:   make(map[*websocket.Conn]*session),
		pending: make(map[string]chan Message),
		logger:  log.WithComponent("display_hub"),
	}
}

// Serve registers the connection and pumps incoming messages until the
// session disconnects. It is called from the websocket upgrade handler and
// blocks for the connection's lifetime.
func (h *Hub) Serve(conn *websocket.Conn) {
	h.register(conn)
	defer h.unregister(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("connection read failed",
					slog.String("error", err.Error()))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("invalid message from session",
				slog.String("error", err.Error()))
			continue
		}

		if msg.Type == MessageTypeReply {
			h.resolve(msg)
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = &session{conn: conn}
	count := len(h.conns)
	h.mu.Unlock()

	h.logger.Debug("connection registered",
		slog.Int("connections", count))
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	count := len(h.conns)
	h.mu.Unlock()

	conn.Close()
	h.logger.Debug("connection unregistered",
		slog.Int("connections", count))
}

// ConnectionCount returns the number of connected sessions.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends an event of the given kind to every connected session.
// Send failures are logged and skipped; a dead connection is cleaned up by
// its own read loop.
func (h *Hub) Broadcast(kind string, payload interface{}) {
	body, err := encode(MessageTypeEvent, "", kind, payload)
	if err != nil {
		h.logger.Error("failed to encode event",
			slog.String("kind", kind),
			slog.String("error", err.Error()))
		return
	}

	for _, sess := range h.sessions() {
		if err := sess.write(body); err != nil {
			h.logger.Warn("failed to send event",
				slog.String("kind", kind),
				slog.String("error", err.Error()))
		}
	}
}

// Request implements the capability transport. The request is sent to every
// connected session; the first reply with the matching ID wins.
func (h *Hub) Request(ctx context.Context, kind string, payload interface{}) (json.RawMessage, error) {
	h.mu.RLock()
	connCount := len(h.conns)
	h.mu.RUnlock()
	if connCount == 0 {
		return nil, fmt.Errorf("no session connected")
	}

	id := uuid.New().String()
	body, err := encode(MessageTypeRequest, id, kind, payload)
	if err != nil {
		return nil, err
	}

	reply := make(chan Message, 1)
	h.mu.Lock()
	h.pending[id] = reply
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	sent := 0
	for _, sess := range h.sessions() {
		if err := sess.write(body); err != nil {
			h.logger.Warn("failed to send request",
				slog.String("kind", kind),
				slog.String("error", err.Error()))
			continue
		}
		sent++
	}
	if sent == 0 {
		return nil, fmt.Errorf("no session reachable")
	}

	timeout := time.NewTimer(requestTimeout)
	defer timeout.Stop()

	select {
	case msg := <-reply:
		if msg.Error != "" {
			return nil, fmt.Errorf("session rejected %s: %s", kind, msg.Error)
		}
		return msg.Payload, nil
	case <-timeout.C:
		return nil, fmt.Errorf("session reply timed out for %s", kind)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) resolve(msg Message) {
	h.mu.Lock()
	reply, ok := h.pending[msg.ID]
	if ok {
		delete(h.pending, msg.ID)
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Debug("reply with no pending request",
			slog.String("id", msg.ID))
		return
	}
	reply <- msg
}

func (h *Hub) sessions() []*session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*session, 0, len(h.conns))
	for _, sess := range h.conns {
		out = append(out, sess)
	}
	return out
}

// encode builds the outgoing wire frame for a kind-tagged payload.
func encode(msgType, id, kind string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	envelope, err := json.Marshal(struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data,omitempty"`
	}{Kind: kind, Data: raw})
	if err != nil {
		return nil, err
	}

	return json.Marshal(Message{Type: msgType, ID: id, Payload: envelope})
}
