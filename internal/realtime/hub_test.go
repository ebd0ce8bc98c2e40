package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	return startHubWithOrigin(t, "*")
}

func startHubWithOrigin(t *testing.T, allowedOrigin string) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zap.NewNop(), allowedOrigin)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) OutgoingMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg OutgoingMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_QueryTopicReceivesPublishedEvents(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "?topic=scan:abc")

	joined := readMessage(t, conn)
	assert.Equal(t, "scan:abc", joined.Topic)
	assert.Equal(t, EventJoined, joined.Event)

	hub.Publish("scan:other", "state", map[string]string{"state": "idle"})
	hub.Publish("scan:abc", "state", map[string]string{"state": "granted"})

	msg := readMessage(t, conn)
	assert.Equal(t, "scan:abc", msg.Topic)
	assert.Equal(t, "state", msg.Event)
	assert.Equal(t, map[string]any{"state": "granted"}, msg.Payload)
}

func TestHub_JoinAndLeaveOverSocket(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")

	require.NoError(t, conn.WriteJSON(IncomingMessage{Topic: "triage:1", Event: "join"}))
	assert.Equal(t, EventJoined, readMessage(t, conn).Event)

	hub.Publish("triage:1", "composing", true)
	msg := readMessage(t, conn)
	assert.Equal(t, "composing", msg.Event)
	assert.Equal(t, true, msg.Payload)

	require.NoError(t, conn.WriteJSON(IncomingMessage{Topic: "triage:1", Event: "leave"}))
	assert.Equal(t, EventLeft, readMessage(t, conn).Event)

	hub.Publish("triage:1", "entry", "ignored")
	require.NoError(t, conn.WriteJSON(IncomingMessage{Topic: "triage:2", Event: "join"}))
	next := readMessage(t, conn)
	assert.Equal(t, "triage:2", next.Topic)
	assert.Equal(t, EventJoined, next.Event)
}

func TestHub_PublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop(), "*")
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish("scan:x", "state", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked after hub stopped")
	}
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, srv := startHubWithOrigin(t, "https://app.example.com")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?topic=scan:abc"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	conn.Close()
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		allowed string
		origin  string
		want    bool
	}{
		{allowed: "*", origin: "https://any.example.com", want: true},
		{allowed: "", origin: "https://any.example.com", want: true},
		{allowed: "https://app.example.com", origin: "https://app.example.com", want: true},
		{allowed: "https://app.example.com", origin: "https://evil.example.com", want: false},
		{allowed: "https://app.example.com", origin: "", want: true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, originChecker(tt.allowed)(r), "allowed=%q origin=%q", tt.allowed, tt.origin)
	}
}
