package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whisper/ws-relay/internal/relay"
)

// newEchoUpstream starts a WebSocket server that echoes every text frame it
// receives, and returns its ws:// URL.
func newEchoUpstream(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testServer() (*Server, *relay.Registry) {
	registry := relay.NewRegistry()
	cfg := relay.DefaultConfig()
	cfg.KeepAlive = 100 * time.Millisecond
	cfg.MaxBatchDuration = 20 * time.Millisecond
	return NewServer(registry, cfg, ""), registry
}

func TestConnectGetSendCloseRoundTrip(t *testing.T) {
	upstreamURL := newEchoUpstream(t)
	server, _ := testServer()
	engine := server.Engine()

	body, _ := json.Marshal(connectRequest{URL: upstreamURL})
	req := httptest.NewRequest(http.MethodPost, "/connect", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("connect: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var connectResp envelope
	connectResp.Result = &connectResult{}
	if err := json.Unmarshal(rec.Body.Bytes(), &connectResp); err != nil {
		t.Fatalf("decode connect response: %v", err)
	}
	id := connectResp.Result.(*connectResult).ID
	if id == "" {
		t.Fatal("expected non-empty session id")
	}

	sendBody, _ := json.Marshal(sendRequest{Data: "hello"})
	sendReq := httptest.NewRequest(http.MethodPost, "/"+id+"/send", bytes.NewReader(sendBody))
	sendRec := httptest.NewRecorder()
	engine.ServeHTTP(sendRec, sendReq)
	if sendRec.Code != http.StatusOK {
		t.Fatalf("send: expected 200, got %d: %s", sendRec.Code, sendRec.Body.String())
	}

	var got []socketMessage
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		getReq := httptest.NewRequest(http.MethodGet, "/"+id+"/get?long=true", nil)
		getRec := httptest.NewRecorder()
		engine.ServeHTTP(getRec, getReq)
		if getRec.Code != http.StatusOK {
			t.Fatalf("get: expected 200, got %d: %s", getRec.Code, getRec.Body.String())
		}
		var resp struct {
			Success bool             `json:"success"`
			Result  []socketMessage  `json:"result"`
		}
		if err := json.Unmarshal(getRec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode get response: %v", err)
		}
		if len(resp.Result) > 0 {
			got = resp.Result
			break
		}
	}
	if len(got) != 1 || got[0].Type != "content" || got[0].Content != "hello" {
		t.Fatalf("expected echoed frame, got %+v", got)
	}

	closeBody, _ := json.Marshal(closeRequest{Reason: strPtr("bye")})
	closeReq := httptest.NewRequest(http.MethodDelete, "/"+id+"/close", bytes.NewReader(closeBody))
	closeRec := httptest.NewRecorder()
	engine.ServeHTTP(closeRec, closeReq)
	if closeRec.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d: %s", closeRec.Code, closeRec.Body.String())
	}

	// The close was unframed (no code), so the driver drops the reason:
	// it never becomes a close frame in the session's buffer, and the
	// next poll just observes the socket has gone not-alive.
	deadline = time.Now().Add(2 * time.Second)
	var lastCode int
	var lastBody string
	for time.Now().Before(deadline) {
		getReq := httptest.NewRequest(http.MethodGet, "/"+id+"/get?long=true", nil)
		getRec := httptest.NewRecorder()
		engine.ServeHTTP(getRec, getReq)
		lastCode = getRec.Code
		lastBody = getRec.Body.String()
		if getRec.Code == http.StatusBadRequest {
			break
		}
	}
	if lastCode != http.StatusBadRequest {
		t.Fatalf("expected eventual 400 socket-not-alive, got %d: %s", lastCode, lastBody)
	}
}

func strPtr(s string) *string { return &s }

func TestSocketMessageTaggedShapes(t *testing.T) {
	content, ok := frameToSocketMessage(relay.Frame{Kind: relay.FrameContent, Content: "hi"})
	if !ok {
		t.Fatal("expected a content frame to convert")
	}
	data, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("marshal content message: %v", err)
	}
	if got, want := string(data), `{"type":"content","content":"hi"}`; got != want {
		t.Fatalf("content message: got %s, want %s", got, want)
	}

	reason := "bye"
	closeMsg, ok := frameToSocketMessage(relay.Frame{Kind: relay.FrameClose, Reason: &reason})
	if !ok {
		t.Fatal("expected a close frame to convert")
	}
	data, err = json.Marshal(closeMsg)
	if err != nil {
		t.Fatalf("marshal close message: %v", err)
	}
	if got, want := string(data), `{"type":"close","reason":"bye"}`; got != want {
		t.Fatalf("close message: got %s, want %s", got, want)
	}

	noReason, ok := frameToSocketMessage(relay.Frame{Kind: relay.FrameClose})
	if !ok {
		t.Fatal("expected a reasonless close frame to convert")
	}
	data, err = json.Marshal(noReason)
	if err != nil {
		t.Fatalf("marshal reasonless close message: %v", err)
	}
	if got, want := string(data), `{"type":"close","reason":null}`; got != want {
		t.Fatalf("reasonless close message: got %s, want %s", got, want)
	}
}

func TestGetUnknownSessionReturnsNotFound(t *testing.T) {
	server, _ := testServer()
	engine := server.Engine()

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist/get", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBannerIsPlainText(t *testing.T) {
	server, _ := testServer()
	engine := server.Engine()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.HasPrefix(rec.Body.String(), "{") {
		t.Fatal("expected plain text banner, got JSON")
	}
}

func TestAuthGuardRejectsMissingToken(t *testing.T) {
	registry := relay.NewRegistry()
	cfg := relay.DefaultConfig()
	server := NewServer(registry, cfg, "secret-token")
	engine := server.Engine()

	body, _ := json.Marshal(connectRequest{URL: "ws://unused"})
	req := httptest.NewRequest(http.MethodPost, "/connect", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthGuardDoesNotApplyToGet(t *testing.T) {
	registry := relay.NewRegistry()
	cfg := relay.DefaultConfig()
	server := NewServer(registry, cfg, "secret-token")
	engine := server.Engine()

	req := httptest.NewRequest(http.MethodGet, "/missing/get", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 (guard should not intercept), got %d: %s", rec.Code, rec.Body.String())
	}
}
