package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/hudsor01/tenant-flow-sub013/internal/errors"
	"github.com/hudsor01/tenant-flow-sub013/internal/metrics"
	"github.com/hudsor01/tenant-flow-sub013/internal/realtime"
)

const (
	// userIDHeader carries the authenticated manager account ID, resolved
	// by the gateway in front of this service.
	userIDHeader = "X-User-ID"

	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced at the gateway
	},
}

// handleWebSocket admits the caller, subscribes it to the broadcaster, and
// pumps its event stream over the socket until either side disconnects.
// Admission runs before the upgrade so rejections map to real HTTP statuses.
func (s *Server) handleWebSocket(c echo.Context) error {
	userID := c.Request().Header.Get(userIDHeader)
	if userID == "" {
		return apperrors.ValidationError("missing " + userIDHeader + " header")
	}

	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		metrics.WebSocketConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		return apperrors.UserCapacityError("too many connections from this address", nil).
			WithContext("reason", string(reason))
	}

	stream, err := s.broadcaster.Subscribe(userID, sessionID)
	if err != nil {
		s.limits.Release(ip)
		switch {
		case errors.Is(err, realtime.ErrPerUserCapacityExceeded):
			metrics.WebSocketConnectionsRejectedTotal.WithLabelValues("per_user_capacity").Inc()
			return apperrors.UserCapacityError("connection limit reached for user", err).
				WithContext("user_id", userID)
		case errors.Is(err, realtime.ErrGlobalCapacityExceeded):
			metrics.WebSocketConnectionsRejectedTotal.WithLabelValues("global_capacity").Inc()
			return apperrors.GlobalCapacityError("server at connection capacity", err)
		default:
			return apperrors.InternalError("failed to subscribe", err)
		}
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.broadcaster.Unsubscribe(sessionID, stream)
		s.limits.Release(ip)
		slog.Warn("WebSocket upgrade failed", "error", err, "remote_ip", ip)
		return nil
	}

	slog.Info("WebSocket connected", "user_id", userID, "session_id", sessionID, "remote_ip", ip)

	// Read pump: we never expect client messages, but reading is how we
	// notice the peer going away between heartbeats.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.writeEvents(conn, stream, readDone)

	// Scoped to this handler's stream: if the session ID was rebound to a
	// reconnect while we were tearing down, the replacement stays registered.
	s.broadcaster.Unsubscribe(sessionID, stream)
	s.limits.Release(ip)
	_ = conn.Close()

	slog.Info("WebSocket disconnected", "user_id", userID, "session_id", sessionID)
	return nil
}

// writeEvents forwards events from the stream to the socket. Returns when
// the stream is closed (pruned, replaced, or shutdown), the client hangs
// up, or a write fails.
func (s *Server) writeEvents(conn *websocket.Conn, stream <-chan realtime.Event, readDone <-chan struct{}) {
	for {
		select {
		case event, ok := <-stream:
			if !ok {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait),
				)
				return
			}

			start := time.Now()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				slog.Debug("WebSocket write failed", "error", err)
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(time.Since(start).Seconds())

		case <-readDone:
			return
		}
	}
}
