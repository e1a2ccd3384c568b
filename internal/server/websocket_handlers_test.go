package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
	"github.com/MeKo-Tech/stmtgrid/internal/testutil"
)

// mockWebSocketConn records written messages.
type mockWebSocketConn struct {
	mu       sync.Mutex
	messages []WebSocketMessage
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockWebSocketConn) sent() []WebSocketMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WebSocketMessage(nil), m.messages...)
}

func TestServer_ProcessWebSocketDocument(t *testing.T) {
	server := newTestServer(t, &fakeExtractor{res: sampleResult(), pages: 3}, nil)
	conn := &mockWebSocketConn{}

	server.processWebSocketDocument(t.Context(), conn, testutil.MinimalPDF())

	msgs := conn.sent()
	require.Len(t, msgs, 4)
	for i, msg := range msgs[:3] {
		assert.Equal(t, wsTypeProgress, msg.Type)
		assert.Equal(t, i+1, msg.Done)
		assert.Equal(t, 3, msg.Total)
		assert.Equal(t, msgs[0].RequestID, msg.RequestID)
	}
	final := msgs[3]
	assert.Equal(t, wsTypeResult, final.Type)
	require.NotNil(t, final.Result)
	assert.Equal(t, table.PathDirect, final.Result.Path)
	assert.Equal(t, msgs[0].RequestID, final.RequestID)
}

func TestServer_ProcessWebSocketDocument_Error(t *testing.T) {
	server := newTestServer(t, &fakeExtractor{err: extract.ErrNoTextFound}, nil)
	conn := &mockWebSocketConn{}

	server.processWebSocketDocument(t.Context(), conn, []byte("%PDF-1.4"))

	msgs := conn.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, wsTypeError, msgs[0].Type)
	assert.Equal(t, extract.CodeNoTextFound, msgs[0].Code)
	assert.Nil(t, msgs[0].Result)
}

func dialTestServer(t *testing.T, server *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestServer_WebSocket_EndToEnd(t *testing.T) {
	server := newTestServer(t, &fakeExtractor{res: sampleResult(), pages: 2}, nil)
	conn := dialTestServer(t, server)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, testutil.MinimalPDF()))

	var types []string
	for {
		var msg WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		types = append(types, msg.Type)
		if msg.Type != wsTypeProgress {
			require.NotNil(t, msg.Result)
			assert.Equal(t, 1, msg.Result.Pages)
			break
		}
	}
	assert.Equal(t, []string{wsTypeProgress, wsTypeProgress, wsTypeResult}, types)
}

func TestServer_WebSocket_RejectsText(t *testing.T) {
	server := newTestServer(t, &fakeExtractor{res: sampleResult()}, nil)
	conn := dialTestServer(t, server)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pdf"}`)))

	var msg WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsTypeError, msg.Type)
	assert.Equal(t, extract.CodeInvalidDocument, msg.Code)
}

func TestServer_WebSocket_RateLimited(t *testing.T) {
	server := newTestServer(t, &fakeExtractor{res: sampleResult()}, nil)
	server.rateLimiter = NewRateLimiter(RateLimitConfig{Enabled: true, RequestsPerMinute: 1})
	conn := dialTestServer(t, server)

	var msg WebSocketMessage
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, testutil.MinimalPDF()))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsTypeResult, msg.Type)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, testutil.MinimalPDF()))
	msg = WebSocketMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsTypeError, msg.Type)
	assert.Equal(t, "rate_limit_exceeded", msg.Code)
}
