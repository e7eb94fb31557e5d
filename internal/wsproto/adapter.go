// Package wsproto adapts the tailer package's Subscriber interface onto
// github.com/coder/websocket, and decodes the inbound subscribe message
// (spec.md §6). It is the thin outer transport layer the core spec
// deliberately does not re-specify.
package wsproto

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/streamtail/streamtail/internal/tailer"
)

// writeTimeout bounds every outbound frame the way the teacher's
// SSEStream bounds its writes, so a stalled client cannot block the
// Session Tailer's single dispatcher goroutine indefinitely.
const writeTimeout = 3 * time.Second

// readLimit caps inbound frame size; the only inbound message is the
// small {path, resumeAfterSeq?} subscribe object.
const readLimit = 1 << 16

// SubscribeRequest is the inbound message a client sends immediately
// after connecting (spec.md §6).
type SubscribeRequest struct {
	Path           string `json:"path"`
	ResumeAfterSeq *int64 `json:"resumeAfterSeq,omitempty"`
}

// Subscriber adapts one *websocket.Conn to tailer.Subscriber. BufferedBytes
// is an approximation: coder/websocket does not expose its write buffer
// depth, so this counts bytes handed to Write that haven't returned yet,
// which is the only backpressure signal available at this layer.
type Subscriber struct {
	conn     *websocket.Conn
	connID   string
	inFlight int64
}

// NewSubscriber wraps conn. conn.SetReadLimit is applied by the caller
// (Accept below) before the connection is handed anywhere. Each
// connection gets a short correlation id for log lines, the same way
// the pack's gateway/agent-loop code tags a run with uuid.NewString()[:8]
// rather than logging the whole UUID.
func NewSubscriber(conn *websocket.Conn) *Subscriber {
	return &Subscriber{conn: conn, connID: uuid.NewString()[:8]}
}

// ConnID returns this connection's short correlation id, for callers
// that want to tag their own log lines consistently with SendError's.
func (s *Subscriber) ConnID() string { return s.connID }

func (s *Subscriber) Send(msg tailer.OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wsproto: marshal outbound message: %w", err)
	}

	atomic.AddInt64(&s.inFlight, int64(len(data)))
	defer atomic.AddInt64(&s.inFlight, -int64(len(data)))

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *Subscriber) BufferedBytes() int {
	return int(atomic.LoadInt64(&s.inFlight))
}

// Close sends a close frame with the given status and reason.
func (s *Subscriber) Close(status websocket.StatusCode, reason string) {
	_ = s.conn.Close(status, reason)
}

// Accept upgrades r to a WebSocket connection, applies the read limit,
// and returns a Subscriber ready for Registry.GetOrCreate +
// SessionTailer.Subscribe. Callers are responsible for reading the
// first inbound message with ReadSubscribeRequest.
func Accept(w http.ResponseWriter, r *http.Request) (*Subscriber, error) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wsproto: accept: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return NewSubscriber(conn), nil
}

// ReadSubscribeRequest blocks for the first inbound frame and decodes
// it as a SubscribeRequest. An invalid shape is the caller's cue to
// send the `error` message and close, per spec.md §6.
func (s *Subscriber) ReadSubscribeRequest(ctx context.Context) (SubscribeRequest, error) {
	var req SubscribeRequest
	if err := wsjson.Read(ctx, s.conn, &req); err != nil {
		return SubscribeRequest{}, fmt.Errorf("wsproto: read subscribe request: %w", err)
	}
	if req.Path == "" {
		return SubscribeRequest{}, fmt.Errorf("wsproto: subscribe request missing path")
	}
	return req, nil
}

// ReadRaw blocks for the next inbound frame, discarding its content.
// Used only to detect client disconnect after the initial subscribe
// message has been consumed — this protocol has no further inbound
// control messages.
func (s *Subscriber) ReadRaw(ctx context.Context) (websocket.MessageType, []byte, error) {
	return s.conn.Read(ctx)
}

// SendError writes a fatal { type: "error", seq: 0 } message and closes
// the connection, per spec.md §6's invalid-shape handling.
func (s *Subscriber) SendError(message string) {
	msg := tailer.OutboundMessage{Type: tailer.MsgError, Seq: 0, Message: message}
	if err := s.Send(msg); err != nil {
		log.Printf("wsproto: [%s] error-message send failed: %v", s.connID, err)
	}
	s.Close(websocket.StatusPolicyViolation, message)
}
