// Package http implements the REST surface: the join flow and the read-only
// reporting endpoints for rooms, members, and the audit trail.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/service"
)

// JoinHandler issues capability tokens for the connection handshake.
type JoinHandler struct {
	joinService *service.JoinService
}

// NewJoinHandler creates a JoinHandler.
func NewJoinHandler(joinService *service.JoinService) *JoinHandler {
	return &JoinHandler{joinService: joinService}
}

// JoinRequest is the join payload. Room is optional and defaults server-side;
// password is only meaningful for admin elevation.
type JoinRequest struct {
	Room        string `json:"room"`
	DisplayName string `json:"displayName" binding:"required"`
	Password    string `json:"password"`
}

// JoinResponse carries the short-lived capability token and the granted role.
type JoinResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Join validates the nickname, places the single-use name hold, and returns a
// signed token. The hold, not the token, is what actually reserves the name.
func (h *JoinHandler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Join: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: displayName required")
		return
	}

	token, role, err := h.joinService.Join(c.Request.Context(), req.Room, req.DisplayName, req.Password)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room": req.Room,
			"name": req.DisplayName,
		}).Warn("Handler.Join: Join rejected")
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"room": req.Room, "role": role}).Info("Handler.Join: Token issued")
	SuccessResponse(c, http.StatusOK, JoinResponse{Token: token, Role: role})
}
