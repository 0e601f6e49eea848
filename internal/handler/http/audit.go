package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/middleware"
	"vls-chat/internal/repository"
)

const (
	auditDefaultLimit = 200
	auditMaxLimit     = 500
)

// AuditHandler serves the admin-only moderation audit trail.
type AuditHandler struct {
	store repository.Store
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(store repository.Store) *AuditHandler {
	return &AuditHandler{store: store}
}

// Audit returns recent audit entries, newest first. The room defaults to the
// caller's own room from the verified token, then to "demo"; limit is clamped
// to 1..500.
func (h *AuditHandler) Audit(c *gin.Context) {
	room := c.Query("room")
	if room == "" {
		if ident, ok := middleware.Identity(c); ok {
			room = ident.Room
		}
	}
	if room == "" {
		room = "demo"
	}

	limit := auditDefaultLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > auditMaxLimit {
		limit = auditMaxLimit
	}

	entries, err := h.store.Audit(c.Request.Context(), room, limit)
	if err != nil {
		logrus.WithError(err).WithField("room", room).Error("Handler.Audit: Failed to load audit trail")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to load audit trail")
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room": room, "items": entries})
}
