package httpadapter

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/keepsake/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleEvents streams a snapshot on every change of the session, so the
// reveal screen can show the image and voice as soon as they arrive.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.keepsakes.Session(sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		return
	}
	defer conn.Close()

	log := observability.LoggerFromContext(r.Context()).With("session_id", sess.ID())
	updates, cancel := sess.Subscribe()
	defer cancel()

	// reads only to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(toSessionResponse(snap, r)); err != nil {
				log.Debug("event stream write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
