package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// WebSocket message types.
const (
	wsTypeProgress = "progress"
	wsTypeResult   = "result"
	wsTypeError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketMessage is sent to the client. Progress messages carry Done and
// Total; the final message is either a result or an error.
type WebSocketMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Done      int             `json:"done,omitempty"`
	Total     int             `json:"total,omitempty"`
	Result    *extract.Result `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
}

// extractWebSocketHandler accepts documents as binary messages and streams
// page progress back before the result. One document is processed at a time
// per connection.
func (s *Server) extractWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn, getClientIP(r))
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, client string) {
	conn.SetReadLimit(s.maxUploadBytes())
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType != websocket.BinaryMessage {
			s.sendWebSocketMessage(conn, WebSocketMessage{
				Type:  wsTypeError,
				Error: "send the document as a binary message",
				Code:  extract.CodeInvalidDocument,
			})
			continue
		}
		if s.rateLimiter != nil {
			if err := s.rateLimiter.Allow(client, int64(len(data))); err != nil {
				s.sendWebSocketMessage(conn, WebSocketMessage{Type: wsTypeError, Error: err.Error(), Code: "rate_limit_exceeded"})
				continue
			}
		}
		uploadSizeBytes.Observe(float64(len(data)))
		s.processWebSocketDocument(ctx, conn, data)
	}
}

// processWebSocketDocument extracts data, writing progress and the final
// message to conn. Progress is delivered from a single goroutine and drained
// before the final message, so writes to conn never overlap.
func (s *Server) processWebSocketDocument(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reqID := uuid.NewString()
	async := progress.NewAsync(progress.Func(func(done, total int) {
		s.sendWebSocketMessage(conn, WebSocketMessage{
			Type:      wsTypeProgress,
			RequestID: reqID,
			Done:      done,
			Total:     total,
		})
	}))
	res, err := s.extractor.ProcessBytes(ctx, data, async)
	async.Close()

	if err != nil {
		s.logger.Warn("WebSocket extraction failed", "request_id", reqID, "code", extract.Code(err), "error", err)
		s.sendWebSocketMessage(conn, WebSocketMessage{
			Type:      wsTypeError,
			RequestID: reqID,
			Error:     err.Error(),
			Code:      extract.Code(err),
		})
		return
	}
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:      wsTypeResult,
		RequestID: reqID,
		Result:    res,
	})
}

func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
