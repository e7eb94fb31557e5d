package tailer

import "sync"

// backpressureThreshold is the buffered-bytes cutoff above which a
// broadcast is dropped for a subscriber (spec.md §4.4, §5).
const backpressureThreshold = 1 << 20 // 1 MiB

// Subscriber is the thin transport adapter interface (spec.md §2 item 7):
// deliver one serialized message to one connected client and report how
// many bytes are currently queued for it. Concrete transports (the
// WebSocket adapter in internal/wsproto, or a test double) implement
// this; the Session Tailer never depends on a transport directly.
type Subscriber interface {
	// Send delivers msg. Implementations should serialize it (e.g. to
	// JSON) and write it to the underlying connection. An error here
	// never aborts a broadcast to other subscribers (spec.md §7).
	Send(msg OutboundMessage) error

	// BufferedBytes reports bytes currently queued but not yet
	// flushed to the client, used for the backpressure check.
	BufferedBytes() int
}

// MemorySubscriber is an in-process Subscriber that records every
// message it receives, for tests and for same-process embedding. It is
// never backpressured unless BufferedFn is set.
type MemorySubscriber struct {
	mu       sync.Mutex
	Received []OutboundMessage

	// BufferedFn, when set, overrides BufferedBytes() — tests use
	// this to simulate a congested subscriber.
	BufferedFn func() int

	// FailNext, when > 0, makes the next N Send calls return sendErr
	// instead of recording the message, decrementing on each call.
	FailNext int
	sendErr  error
}

// NewMemorySubscriber returns an always-ready in-memory Subscriber.
func NewMemorySubscriber() *MemorySubscriber {
	return &MemorySubscriber{sendErr: errSendFailed}
}

func (m *MemorySubscriber) Send(msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext > 0 {
		m.FailNext--
		return m.sendErr
	}
	m.Received = append(m.Received, msg)
	return nil
}

func (m *MemorySubscriber) BufferedBytes() int {
	if m.BufferedFn != nil {
		return m.BufferedFn()
	}
	return 0
}

// Messages returns a copy of every message received so far.
func (m *MemorySubscriber) Messages() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundMessage, len(m.Received))
	copy(out, m.Received)
	return out
}

var errSendFailed = sendError("simulated send failure")

type sendError string

func (e sendError) Error() string { return string(e) }
