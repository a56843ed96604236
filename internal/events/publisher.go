// Package events publishes session lifecycle transitions to NATS for
// external audit/observability consumers. It is publish-only: this gateway
// never subscribes to anything, since a session's data path has no
// broadcast or multi-consumer semantics.
package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectSessions is the NATS subject lifecycle events are published to.
const SubjectSessions = "relay.sessions"

// Publisher wraps a NATS connection for publish-only use.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials url and returns a ready Publisher. Callers should treat a
// failure to connect as "events disabled" rather than fatal, since
// publishing lifecycle events is an optional audit feed.
func Connect(url string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("ws-relay"))
	if err != nil {
		return nil, err
	}
	log.Printf("[events] connected to %s", conn.ConnectedUrl())
	return &Publisher{conn: conn}, nil
}

type lifecycleEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// SessionCreated publishes a session.created event.
func (p *Publisher) SessionCreated(id, upstreamURL string) {
	p.publish(lifecycleEvent{Type: "session.created", SessionID: id, Detail: upstreamURL, At: time.Now()})
}

// SessionClosed publishes a session.closed event, carrying the reason the
// driver gave for exiting.
func (p *Publisher) SessionClosed(id, reason string) {
	p.publish(lifecycleEvent{Type: "session.closed", SessionID: id, Detail: reason, At: time.Now()})
}

func (p *Publisher) publish(ev lifecycleEvent) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[events] marshal error: %v", err)
		return
	}
	if err := p.conn.Publish(SubjectSessions, data); err != nil {
		log.Printf("[events] publish error: %v", err)
	}
}

// Close drains and closes the underlying NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		log.Printf("[events] drain error: %v", err)
	}
}
