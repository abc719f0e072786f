package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096

	msgStatusUpdate = "statusUpdate"
	msgForceCheck   = "forceCheck"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// wsMessage is the envelope for every WebSocket message in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wsOutbound struct {
	Type string        `json:"type"`
	Data statusPayload `json:"data"`
}

// handleWS upgrades to a WebSocket, sends the latest snapshot, then streams
// one statusUpdate per cycle. Inbound forceCheck messages trigger a cycle.
//
// Only the write loop below writes to the connection; the read loop runs in
// its own goroutine and signals disconnect by closing done.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	if err := s.writeSnapshot(conn, newPayload(s.store.Latest())); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readLoop(conn)
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := s.writeSnapshot(conn, newPayload(snap)); err != nil {
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}

		case <-done:
			s.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
			return

		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		}
	}
}

func (s *Server) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("ignoring malformed websocket message", "error", err)
			continue
		}

		switch msg.Type {
		case msgForceCheck:
			if s.trigger == nil {
				continue
			}
			queued := s.trigger("ws")
			s.logger.Debug("manual check requested", "source", "ws", "queued", queued)
		default:
			s.logger.Debug("ignoring websocket message", "type", msg.Type)
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn, payload statusPayload) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(wsOutbound{Type: msgStatusUpdate, Data: payload})
}
