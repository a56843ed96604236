// Package upstream wraps the single outbound WebSocket connection a relay
// session drives against the proxied server.
package upstream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HandshakeTimeout bounds how long Dial waits for the upstream server to
// complete the WebSocket handshake.
const HandshakeTimeout = 10 * time.Second

// Conn is the subset of a WebSocket connection the relay driver needs. It
// exists so the driver can be tested against a fake without dragging in a
// real socket.
type Conn interface {
	// ReadMessage blocks until a text or binary frame arrives, or the
	// connection is closed. The relay driver buffers the payload of
	// every data frame as content; binary frames are not filtered out.
	ReadMessage() (messageType int, data []byte, err error)

	// WriteText sends a single text frame.
	WriteText(data string) error

	// WriteClose sends a close frame. code and reason may both be zero
	// values, in which case the default close behavior applies.
	WriteClose(code int, reason string) error

	// CloseInfo reports the reason text of the close frame the upstream
	// peer sent, if one has been observed. ok is false until a close
	// frame has actually arrived.
	CloseInfo() (reason string, ok bool)

	Close() error
}

type wsConn struct {
	conn *websocket.Conn

	mu          sync.Mutex
	closeSeen   bool
	closeReason string
}

// Dial opens a WebSocket connection to url and returns it wrapped as a Conn.
func Dial(url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: HandshakeTimeout}
	c, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	w := &wsConn{conn: c}

	// Record the peer's close reason ourselves, then fall back to
	// gorilla's default handler (echo the code with an empty body) so
	// the close handshake still completes normally.
	defaultHandler := c.CloseHandler()
	c.SetCloseHandler(func(code int, text string) error {
		w.mu.Lock()
		w.closeSeen = true
		w.closeReason = text
		w.mu.Unlock()
		return defaultHandler(code, text)
	})

	return w, nil
}

func (w *wsConn) ReadMessage() (int, []byte, error) {
	return w.conn.ReadMessage()
}

func (w *wsConn) CloseInfo() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeReason, w.closeSeen
}

func (w *wsConn) WriteText(data string) error {
	return w.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

func (w *wsConn) WriteClose(code int, reason string) error {
	if code == 0 {
		code = websocket.CloseNormalClosure
	}
	msg := websocket.FormatCloseMessage(code, reason)
	return w.conn.WriteMessage(websocket.CloseMessage, msg)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
