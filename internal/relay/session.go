package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// FrameKind distinguishes the two shapes a drained Frame can take on the
// wire: new content, or notice of an upstream close.
type FrameKind int

const (
	// FrameContent carries a text payload received from upstream.
	FrameContent FrameKind = iota
	// FrameClose marks the end of the upstream connection. Reason is nil
	// when the close carried no reason text.
	FrameClose
)

// Frame is a single inbound payload captured from the upstream connection,
// waiting to be drained by a long-poll read.
type Frame struct {
	Kind    FrameKind
	Content string
	Reason  *string
}

// Session is one long-poll-to-WebSocket bridge. A Session's fields are only
// ever mutated directly by its driver goroutine or under mu; HTTP handlers
// reach it exclusively through the methods below.
type Session struct {
	ID        string
	CreatedAt time.Time

	UpstreamURL string

	alive atomic.Bool

	mu       sync.Mutex
	ready    bool
	inbound  []Frame
	lastPoll time.Time

	notifyMu sync.Mutex
	notifyCh chan struct{}

	Outbound chan Command
}

// NewSession allocates a Session bound to upstreamURL. The session starts
// alive with an empty inbound buffer; the caller is responsible for handing
// it to a Driver.
func NewSession(upstreamURL string, cfg Config) *Session {
	s := &Session{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now(),
		UpstreamURL: upstreamURL,
		lastPoll:    time.Now(),
		notifyCh:    make(chan struct{}),
		Outbound:    make(chan Command, cfg.OutboundQueueSize),
	}
	s.alive.Store(true)
	return s
}

// Alive reports whether the driver still considers the upstream connection
// live. A session remains in the registry for a retention window after
// going non-alive so a final drain can observe the close.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

// markDead flips alive to false and wakes every waiter blocked on a
// long-poll read so they can observe the final state immediately instead of
// waiting out their timeout.
func (s *Session) markDead() {
	s.alive.Store(false)
	s.notifyAll()
}

// push appends a frame received from upstream to the inbound buffer, marks
// the session ready, and wakes any blocked long-poll reader. The inbound
// buffer is unbounded: backpressure against upstream is not a goal of this
// gateway.
func (s *Session) push(f Frame) {
	s.mu.Lock()
	s.inbound = append(s.inbound, f)
	s.ready = true
	s.mu.Unlock()
	s.notifyAll()
}

// notifyAll wakes every goroutine currently blocked in wait by closing the
// current notify channel and installing a fresh one. This is the standard
// Go substitute for a broadcast condition variable that must also be
// selectable against a timeout.
func (s *Session) notifyAll() {
	s.notifyMu.Lock()
	close(s.notifyCh)
	s.notifyCh = make(chan struct{})
	s.notifyMu.Unlock()
}

// waitChannel returns the channel that will close on the next notifyAll.
func (s *Session) waitChannel() <-chan struct{} {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	return s.notifyCh
}

// snapshotReady reports whether the session has unread frames without
// clearing the flag.
func (s *Session) snapshotReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// snapshotReadyAlive reports ready and alive together. alive is read first:
// the driver buffers its last frame before marking the session dead, so a
// caller that sees alive false also sees ready set by that final frame and
// cannot observe a torn combination of the two.
func (s *Session) snapshotReadyAlive() (ready, alive bool) {
	alive = s.alive.Load()
	s.mu.Lock()
	ready = s.ready
	s.mu.Unlock()
	return ready, alive
}

// touchPoll records that a long-poll read has just been served, resetting
// the poll-timeout clock the driver's heartbeat checks against.
func (s *Session) touchPoll() {
	s.mu.Lock()
	s.lastPoll = time.Now()
	s.mu.Unlock()
}

// sincePoll returns how long it has been since the last long-poll read.
func (s *Session) sincePoll() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastPoll)
}

// drain clears ready and returns and removes every buffered frame. The
// ready flag is cleared before the frames are copied out, matching the
// upstream proxy's ordering: a frame that arrives concurrently with a drain
// always re-sets ready, so it is never silently lost between the clear and
// the copy.
func (s *Session) drain() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	if len(s.inbound) == 0 {
		return nil
	}
	out := s.inbound
	s.inbound = nil
	return out
}
