package relay

import (
	"log"
	"time"

	"github.com/whisper/ws-relay/internal/upstream"
)

// Hooks lets the caller observe driver lifecycle events without the relay
// package importing the metrics or events packages directly.
type Hooks struct {
	OnFrame func(s *Session)
	OnClose func(s *Session, reason string)
}

type frameResult struct {
	data        string
	isClose     bool
	closeReason *string
	err         error
}

// Driver owns a session's upstream connection for its entire lifetime. It is
// the only goroutine that ever touches conn; everything else communicates
// with it through the session's Outbound channel and its public read
// methods.
type Driver struct {
	session  *Session
	conn     upstream.Conn
	registry *Registry
	cfg      Config
	hooks    Hooks
}

// NewDriver constructs a Driver for an already-dialed upstream connection.
// The caller must call Run (typically in its own goroutine) to start the
// bridge.
func NewDriver(s *Session, conn upstream.Conn, registry *Registry, cfg Config, hooks Hooks) *Driver {
	return &Driver{session: s, conn: conn, registry: registry, cfg: cfg, hooks: hooks}
}

// Run bridges the session's outbound command queue and the upstream
// connection until the upstream read yields end-of-stream or an error, then
// runs the retention-and-remove exit protocol. A close — whether requested
// by the caller or forced by a stale heartbeat — only ever initiates the
// WebSocket close handshake; the loop itself always exits through the read
// branch observing the resulting end-of-stream, never directly from the
// command or ticker cases. Run blocks until the session has been fully
// retired from the registry; callers invoke it as its own goroutine.
func (d *Driver) Run() {
	frames := make(chan frameResult, 1)
	go d.readLoop(frames)

	ticker := time.NewTicker(d.cfg.HeartbeatInterval)
	defer ticker.Stop()

	lastUpstream := time.Now()
	reason := "upstream closed"
	closeInitiated := false

loop:
	for {
		select {
		case cmd := <-d.session.Outbound:
			switch c := cmd.(type) {
			case MessageCommand:
				// A failed write is left to the read branch, which observes
				// the same broken connection and ends the loop.
				_ = d.conn.WriteText(c.Text)
			case CloseCommand:
				if closeInitiated {
					continue
				}
				closeInitiated = true
				reason = "closed by request"

				code := 0
				text := ""
				if c.Code != nil {
					code = int(*c.Code)
					if c.Reason != nil {
						text = *c.Reason
						d.session.push(Frame{Kind: FrameClose, Reason: c.Reason})
						if d.hooks.OnFrame != nil {
							d.hooks.OnFrame(d.session)
						}
					}
				}
				_ = d.conn.WriteClose(code, text)
			}

		case fr := <-frames:
			if fr.err != nil {
				if !closeInitiated {
					reason = "upstream read error"
				}
				break loop
			}
			lastUpstream = time.Now()
			switch {
			case fr.isClose && !closeInitiated:
				// A close we did not ask for: the tie-break case, buffered
				// as a normal frame before the next read yields the error
				// that actually ends the loop.
				d.session.push(Frame{Kind: FrameClose, Reason: fr.closeReason})
			case fr.isClose:
				// Our own close handshake's acknowledgment; the reason
				// surfaced to the caller already came from the command
				// that initiated it. Nothing is buffered, so OnFrame is
				// not called.
				continue
			default:
				d.session.push(Frame{Content: fr.data})
			}
			if d.hooks.OnFrame != nil {
				d.hooks.OnFrame(d.session)
			}

		case <-ticker.C:
			if closeInitiated {
				continue
			}
			if d.session.sincePoll() > d.cfg.ConnectionPollTimeout {
				closeInitiated = true
				reason = "poll timeout"
				_ = d.conn.WriteClose(0, "")
			} else if time.Since(lastUpstream) > d.cfg.ConnectionTimeout {
				closeInitiated = true
				reason = "connection timeout"
				_ = d.conn.WriteClose(0, "")
			}
		}
	}

	d.session.markDead()
	if d.hooks.OnClose != nil {
		d.hooks.OnClose(d.session, reason)
	}
	_ = d.conn.Close()

	time.Sleep(d.cfg.ClosedConnectionExpiry)
	d.registry.Remove(d.session.ID)
	log.Printf("relay: session retired id=%s reason=%q", d.session.ID, reason)
}

// readLoop runs for the lifetime of the connection, translating blocking
// ReadMessage calls into channel sends the select loop in Run can multiplex
// against timers and the outbound queue. When the terminating read actually
// observed a close frame from the peer, its reason is sent as its own close
// result ahead of the error, so Run can buffer it before the loop exits.
func (d *Driver) readLoop(out chan<- frameResult) {
	for {
		_, data, err := d.conn.ReadMessage()
		if err != nil {
			if reason, ok := d.conn.CloseInfo(); ok {
				r := reason
				out <- frameResult{isClose: true, closeReason: &r}
			}
			out <- frameResult{err: err}
			return
		}
		out <- frameResult{data: string(data)}
	}
}
