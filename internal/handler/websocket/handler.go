// Package websocket implements the connection handshake: upgrade, bearer
// token verification, single-use nickname hold consumption, and session
// activation. Every failure terminates the connection with a distinguishing
// close code and no retry; the client must redo the join flow.
package websocket

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/domain"
	"vls-chat/internal/hub"
	"vls-chat/internal/repository"
	"vls-chat/internal/service"
)

// Close codes sent for handshake failures.
const (
	CloseBadToken        = 4000
	CloseNameNotReserved = 4001
	CloseHoldCheckFailed = 4002
)

// Handler upgrades connections and runs the handshake state machine:
// connecting → authenticating → reserving → active.
type Handler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	auth     *service.AuthService
	chat     *service.ChatService
	store    repository.Store
}

// NewHandler creates a Handler.
func NewHandler(h *hub.Hub, auth *service.AuthService, chat *service.ChatService, store repository.Store) *Handler {
	if h == nil || auth == nil || chat == nil || store == nil {
		panic("Handler dependencies cannot be nil")
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hub:   h,
		auth:  auth,
		chat:  chat,
		store: store,
	}
}

// HandleConnection runs the handshake. The capability token arrives as a
// query parameter because browsers cannot set headers on WebSocket upgrades;
// it is verified only after the upgrade so failures can carry a close code.
func (h *Handler) HandleConnection(c *gin.Context) {
	token := c.Query("token")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("Handshake: failed to upgrade connection")
		return
	}

	// Authenticating: signature and expiry, no retry on failure.
	ident, err := h.auth.VerifyToken(token)
	if err != nil {
		closeWith(conn, CloseBadToken, "bad token")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room": ident.Room, "user_id": ident.UserID})

	// Reserving: consume the hold in a single atomic read-and-delete so two
	// concurrent handshakes can never both claim the same name.
	ctx := c.Request.Context()
	owner, err := h.store.ConsumeHold(ctx, ident.Room, ident.NameLower)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		logCtx.Warn("Handshake: no live hold for name")
		closeWith(conn, CloseNameNotReserved, "name not reserved")
		return
	case err != nil:
		logCtx.WithError(err).Error("Handshake: hold check failed")
		closeWith(conn, CloseHoldCheckFailed, "hold check failed")
		return
	case owner != ident.UserID:
		logCtx.Warn("Handshake: hold owned by a different identity")
		closeWith(conn, CloseNameNotReserved, "name not reserved")
		return
	}

	// Active: shared membership, local registration, welcome, presence,
	// history replay.
	h.chat.JoinPresence(ctx, ident)

	sess := hub.NewSession(h.hub, conn, ident)
	h.hub.Register(sess)
	sess.Run()

	h.hub.Send(sess, domain.Hello{Type: "hello", Occupants: h.hub.Occupants(ident.Room)})
	h.hub.BroadcastPresence(ident.Room)

	items, err := h.chat.HistoryReplay(ctx, ident.Room)
	if err != nil {
		logCtx.WithError(err).Warn("Handshake: history replay unavailable")
	} else if len(items) > 0 {
		h.hub.Send(sess, domain.History{Type: "history", Items: items})
	}

	logCtx.Info("Handshake complete, session active")
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	conn.Close()
}
