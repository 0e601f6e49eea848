package hub

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/domain"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second

	// heartbeatInterval is the hub's ping sweep period. A session that has
	// not answered by the next sweep is terminated.
	heartbeatInterval = 30 * time.Second

	// pongWait is the read deadline, comfortably above two sweep periods.
	pongWait = 65 * time.Second

	// maxFrameSize bounds an inbound frame against abuse. The text cap is
	// 2000 runes applied by truncation after receipt, so the limit must
	// admit a frame whose text is oversized in bytes: 2000 four-byte runes
	// plus JSON escaping and envelope still fit with room to spare.
	maxFrameSize = 32768

	sendBuffer = 256
)

// Session is one live, authenticated connection bound to exactly one room
// and one identity. It is owned by the process that accepted the connection
// and is never serialized or shared.
type Session struct {
	hub   *Hub
	conn  *websocket.Conn
	ident domain.Identity

	send  chan []byte
	alive atomic.Bool

	// lastAccepted is the slow-mode clock. It is read and written only by
	// this session's read loop, so it needs no lock.
	lastAccepted time.Time

	// closed marks the send channel as closed; guarded by the hub mutex.
	closed bool
}

// NewSession wraps an upgraded connection. conn may be nil in tests.
func NewSession(h *Hub, conn *websocket.Conn, ident domain.Identity) *Session {
	s := &Session{
		hub:   h,
		conn:  conn,
		ident: ident,
		send:  make(chan []byte, sendBuffer),
	}
	s.alive.Store(true)
	if conn != nil {
		conn.SetReadLimit(maxFrameSize)
	}
	return s
}

// Identity returns the session's verified identity.
func (s *Session) Identity() domain.Identity { return s.ident }

// Run starts the session's read and write pumps.
func (s *Session) Run() {
	go s.writePump()
	go s.readPump()
}

// readPump delivers inbound frames to the hub in strict arrival order, so
// everything originating from one session is processed FIFO. Exiting the
// loop, for any reason, unregisters the session.
func (s *Session) readPump() {
	defer func() {
		s.hub.Unregister(s)
		s.conn.Close()
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.alive.Store(true)
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, raw, err := s.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"room": s.ident.Room, "user_id": s.ident.UserID})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.hub.handleFrame(s, raw)
	}
}

// writePump drains the send channel onto the socket. Pings are not sent
// here; the hub's heartbeat sweep owns liveness probing.
func (s *Session) writePump() {
	defer s.conn.Close()

	for message := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logrus.WithFields(logrus.Fields{"room": s.ident.Room, "user_id": s.ident.UserID}).
				WithError(err).Warn("Failed to write to websocket")
			return
		}
	}
	// Send channel closed by the hub during unregister.
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// terminate force-closes the underlying connection; the read pump's exit
// then performs the normal unregister cleanup.
func (s *Session) terminate() {
	if s.conn != nil {
		s.conn.Close()
	}
}
