package server

import (
	"net/http"
	"time"

	"driverhub/internal/realtime"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebsocket streams live snapshots for the caller's application:
// record updates, new messages, unread counts. The subscription dies with
// the connection.
func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	sub := s.hub.Subscribe(realtime.ApplicationTopic(ident.ID))

	go s.writePump(conn, sub)
	go s.readPump(conn, sub)
}

func (s *Service) writePump(conn *websocket.Conn, sub *realtime.Subscription) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; its job is noticing the disconnect and
// tearing the subscription down.
func (s *Service) readPump(conn *websocket.Conn, sub *realtime.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
