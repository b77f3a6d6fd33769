package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const viewerWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	logger := s.logger.With("viewer_id", uuid.NewString())
	logger.Info("viewer connected", "remote", r.RemoteAddr)
	defer logger.Info("viewer disconnected")

	connectionEvent := ConnectionEvent{
		Event:     newEvent("connection", time.Now().UTC()),
		Connected: true,
	}
	payload, err := json.Marshal(connectionEvent)
	if err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	// Viewers never send anything meaningful; reading only notices the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(viewerWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("viewer write failed", "error", err)
				return
			}
		}
	}
}
