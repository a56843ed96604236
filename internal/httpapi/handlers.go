package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whisper/ws-relay/internal/apierr"
	"github.com/whisper/ws-relay/internal/relay"
	"github.com/whisper/ws-relay/internal/upstream"
)

// connectRequest is the body of POST /connect.
type connectRequest struct {
	URL string `json:"url" binding:"required"`
}

// connectResult is the body of a successful POST /connect response.
type connectResult struct {
	ID string `json:"id"`
}

func (s *Server) handleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apierr.Raw(http.StatusBadRequest, "invalid request body"))
		return
	}

	if s.limiter != nil {
		allowed, _ := s.limiter.Allow(c.Request.Context(), c.ClientIP())
		if !allowed {
			fail(c, apierr.Raw(http.StatusTooManyRequests, "too many connection attempts"))
			return
		}
	}

	conn, err := upstream.Dial(req.URL)
	if err != nil {
		log.Printf("httpapi: dial failed url=%q err=%v", req.URL, err)
		fail(c, apierr.ConnectionError())
		return
	}

	session := relay.NewSession(req.URL, s.cfg)
	s.registry.Insert(session)

	if s.events != nil {
		s.events.SessionCreated(session.ID, req.URL)
	}
	if s.onSessionCreated != nil {
		s.onSessionCreated()
	}

	hooks := relay.Hooks{
		OnFrame: func(*relay.Session) {
			if s.onFrame != nil {
				s.onFrame()
			}
		},
		OnClose: func(sess *relay.Session, reason string) {
			log.Printf("httpapi: session closed id=%s reason=%q", sess.ID, reason)
			if s.events != nil {
				s.events.SessionClosed(sess.ID, reason)
			}
			if s.onSessionClosed != nil {
				s.onSessionClosed(reason)
			}
		},
	}
	driver := relay.NewDriver(session, conn, s.registry, s.cfg, hooks)
	go driver.Run()

	ok(c, connectResult{ID: session.ID})
}

// socketMessage is one item in a GET /:id/get response: either new content
// from upstream, or notice that the socket has closed, tagged by Type so a
// client can tell the two shapes apart on the wire:
// {"type":"content","content":"..."} or {"type":"close","reason":"..."}.
type socketMessage struct {
	Type    string
	Content string
	Reason  *string
}

func (m socketMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case "close":
		return json.Marshal(struct {
			Type   string  `json:"type"`
			Reason *string `json:"reason"`
		}{Type: "close", Reason: m.Reason})
	default:
		return json.Marshal(struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}{Type: "content", Content: m.Content})
	}
}

func (m *socketMessage) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Type    string  `json:"type"`
		Content string  `json:"content"`
		Reason  *string `json:"reason"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	m.Type = tagged.Type
	m.Content = tagged.Content
	m.Reason = tagged.Reason
	return nil
}

func frameToSocketMessage(f relay.Frame) (socketMessage, bool) {
	switch f.Kind {
	case relay.FrameContent:
		return socketMessage{Type: "content", Content: f.Content}, true
	case relay.FrameClose:
		return socketMessage{Type: "close", Reason: f.Reason}, true
	default:
		return socketMessage{}, false
	}
}

func (s *Server) handleGet(c *gin.Context) {
	id := c.Param("id")
	session, found := s.registry.Find(id)
	if !found {
		fail(c, apierr.SocketNotFound())
		return
	}

	opts := relay.ReadOptions{
		Long:        c.Query("long") == "true" || c.Query("long") == "1",
		BatchMillis: queryInt(c, "batch_ms"),
		OnWait:      s.onLongPollWait,
	}

	frames, okToServe := relay.Read(session, s.cfg, opts)
	if !okToServe {
		fail(c, apierr.SocketNotAlive())
		return
	}

	out := make([]socketMessage, 0, len(frames))
	for _, f := range frames {
		if msg, ok := frameToSocketMessage(f); ok {
			out = append(out, msg)
		}
	}

	ok(c, out)
}

// sendRequest is the body of POST /:id/send.
type sendRequest struct {
	Data string `json:"data" binding:"required"`
}

func (s *Server) handleSend(c *gin.Context) {
	id := c.Param("id")
	session, found := s.registry.Find(id)
	if !found {
		fail(c, apierr.SocketNotFound())
		return
	}
	if !session.Alive() {
		fail(c, apierr.SocketChannelSendError())
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apierr.Raw(http.StatusBadRequest, "invalid request body"))
		return
	}

	select {
	case session.Outbound <- relay.MessageCommand{Text: req.Data}:
		ok(c, nil)
	default:
		fail(c, apierr.SocketChannelSendError())
	}
}

// closeRequest is the body of DELETE /:id/close. Code and Reason are both
// optional; a Reason without a Code is dropped by the driver rather than
// sent, since a close frame cannot carry a reason without a code.
type closeRequest struct {
	Code   *uint16 `json:"code"`
	Reason *string `json:"reason"`
}

func (s *Server) handleClose(c *gin.Context) {
	id := c.Param("id")
	session, found := s.registry.Find(id)
	if !found {
		fail(c, apierr.SocketNotFound())
		return
	}

	if !session.Alive() {
		fail(c, apierr.SocketChannelSendError())
		return
	}

	var req closeRequest
	_ = c.ShouldBindJSON(&req)

	select {
	case session.Outbound <- relay.CloseCommand{Code: req.Code, Reason: req.Reason}:
		ok(c, nil)
	default:
		fail(c, apierr.SocketChannelSendError())
	}
}

func (s *Server) handleBanner(c *gin.Context) {
	c.String(http.StatusOK, "Hello from ws-relay!")
}

// queryInt parses an integer query parameter, returning 0 if absent or
// unparseable.
func queryInt(c *gin.Context, key string) int {
	v := c.Query(key)
	if v == "" {
		return 0
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
