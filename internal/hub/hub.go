// Package hub owns the process-local connection registry: which sessions are
// bound to which room, broadcast fanout, heartbeat liveness, and draining on
// shutdown. Cross-process facts live in the shared store; nothing in this
// package is visible to other server instances, and broadcasts deliberately
// reach only sessions registered on this process.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/domain"
	"vls-chat/internal/service"
)

// shutdownGrace is the pause between terminating all sessions and returning,
// letting close frames drain.
const shutdownGrace = 200 * time.Millisecond

// Hub maintains the room → sessions mapping for this process and runs the
// heartbeat sweep. Registry access is serialized by a single mutex, so
// handlers for distinct sessions never race on it.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]bool

	chat *service.ChatService
	log  *logrus.Entry

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a Hub.
func NewHub(chat *service.ChatService) *Hub {
	if chat == nil {
		panic("ChatService cannot be nil for Hub")
	}
	return &Hub{
		rooms: make(map[string]map[*Session]bool),
		chat:  chat,
		log:   logrus.WithField("component", "hub"),
		done:  make(chan struct{}),
	}
}

// Run drives the heartbeat sweep until Shutdown. It should be called in its
// own goroutine.
func (h *Hub) Run() {
	h.log.Info("Hub is running")
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			h.log.Info("Hub heartbeat stopped")
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// Register binds a session to its room's local set. A session belongs to
// exactly one room, the one in its verified identity.
func (h *Hub) Register(s *Session) {
	room := s.ident.Room
	h.mu.Lock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Session]bool)
	}
	h.rooms[room][s] = true
	count := len(h.rooms[room])
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{
		"room":      room,
		"user_id":   s.ident.UserID,
		"occupants": count,
	}).Info("Session registered")
}

// Unregister removes a session from the local registry, closes its send
// channel, removes the shared membership entry, and broadcasts updated
// presence to the room. Safe to call more than once per session.
func (h *Hub) Unregister(s *Session) {
	room := s.ident.Room

	h.mu.Lock()
	sessions, ok := h.rooms[room]
	if !ok || !sessions[s] {
		h.mu.Unlock()
		return
	}
	delete(sessions, s)
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	if len(sessions) == 0 {
		delete(h.rooms, room)
	}
	h.mu.Unlock()

	h.chat.LeavePresence(context.Background(), room, s.ident.UserID)
	h.BroadcastPresence(room)

	h.log.WithFields(logrus.Fields{
		"room":    room,
		"user_id": s.ident.UserID,
	}).Info("Session unregistered")
}

// Occupants returns the local occupant count for a room: exact for this
// process, an approximation of global occupancy when several instances run.
func (h *Hub) Occupants(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast serializes the payload once and delivers it to every open
// session in the room's local set, except the excluded one. A failed or full
// recipient is skipped without affecting the rest.
func (h *Hub) Broadcast(room string, payload interface{}, exclude *Session) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).WithField("room", room).Error("Failed to marshal broadcast payload")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[room] {
		if s == exclude || s.closed {
			continue
		}
		select {
		case s.send <- raw:
		default:
			h.log.WithFields(logrus.Fields{
				"room":    room,
				"user_id": s.ident.UserID,
			}).Warn("Session send buffer full, skipping broadcast delivery")
		}
	}
}

// BroadcastPresence pushes the room's current local occupant count to every
// session in it.
func (h *Hub) BroadcastPresence(room string) {
	h.Broadcast(room, domain.Presence{Type: "presence", Occupants: h.Occupants(room)}, nil)
}

// Send delivers a payload to a single session.
func (h *Hub) Send(s *Session, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal session payload")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.send <- raw:
	default:
		h.log.WithFields(logrus.Fields{
			"room":    s.ident.Room,
			"user_id": s.ident.UserID,
		}).Warn("Session send buffer full, payload dropped")
	}
}

// handleFrame is the inbound pipeline for one frame. Malformed frames are
// discarded silently and the connection stays open; the moderation gates run
// freshly before any content is acted on.
func (h *Hub) handleFrame(s *Session, raw []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.log.WithFields(logrus.Fields{
			"room":    s.ident.Room,
			"user_id": s.ident.UserID,
		}).Debug("Discarding malformed frame")
		return
	}

	ctx := context.Background()
	if h.chat.Blocked(ctx, s.ident.Room, s.ident.UserID) {
		return
	}

	switch frame.Type {
	case domain.FrameTyping:
		h.Broadcast(s.ident.Room, domain.Typing{Type: "typing", User: s.ident.User()}, s)

	case domain.FrameMessage:
		msg, accepted := h.chat.AcceptMessage(ctx, s.ident, frame.Text, s.lastAccepted)
		if !accepted {
			return
		}
		s.lastAccepted = time.Now()
		h.Broadcast(s.ident.Room, msg, nil)

	case domain.FrameReaction:
		reaction, ok := h.chat.Reaction(frame)
		if !ok {
			return
		}
		h.Broadcast(s.ident.Room, reaction, nil)

	case domain.FrameAdmin:
		payload, ok := h.chat.Admin(ctx, s.ident, frame)
		if !ok {
			return
		}
		h.Broadcast(s.ident.Room, payload, nil)
	}
}

// sweep pings every registered session and terminates those that never
// answered the previous ping. WriteControl is safe concurrently with the
// write pump.
func (h *Hub) sweep() {
	h.mu.RLock()
	sessions := make([]*Session, 0)
	for _, roomSessions := range h.rooms {
		for s := range roomSessions {
			sessions = append(sessions, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if !s.alive.Load() {
			h.log.WithFields(logrus.Fields{
				"room":    s.ident.Room,
				"user_id": s.ident.UserID,
			}).Warn("Session missed heartbeat, terminating")
			s.terminate()
			continue
		}
		s.alive.Store(false)
		if s.conn == nil {
			continue
		}
		if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			h.log.WithFields(logrus.Fields{
				"room":    s.ident.Room,
				"user_id": s.ident.UserID,
			}).WithError(err).Warn("Heartbeat ping failed, terminating session")
			s.terminate()
		}
	}
}

// Shutdown stops the heartbeat, force-terminates every registered session,
// and waits a short grace period for close frames to drain. Idempotent.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.RLock()
		sessions := make([]*Session, 0)
		for _, roomSessions := range h.rooms {
			for s := range roomSessions {
				sessions = append(sessions, s)
			}
		}
		h.mu.RUnlock()

		h.log.WithField("sessions", len(sessions)).Info("Terminating all sessions")
		for _, s := range sessions {
			if s.conn != nil {
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
			}
			s.terminate()
		}
		time.Sleep(shutdownGrace)
		h.log.Info("Hub shut down")
	})
}
