package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/repository"
)

// RosterHandler serves the read-only room and member listings from the shared
// store, so the answers cover every server process.
type RosterHandler struct {
	store repository.Store
}

// NewRosterHandler creates a RosterHandler.
func NewRosterHandler(store repository.Store) *RosterHandler {
	return &RosterHandler{store: store}
}

// Rooms lists all known rooms with occupancy, creation time, and slow-mode
// setting, ordered by occupancy.
func (h *RosterHandler) Rooms(c *gin.Context) {
	rooms, err := h.store.Rooms(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Handler.Rooms: Failed to load room roster")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to load rooms")
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// Users lists the members of one room with their activity counters.
func (h *RosterHandler) Users(c *gin.Context) {
	room := c.Param("room")
	if room == "" {
		ErrorResponse(c, http.StatusBadRequest, "Room is required")
		return
	}

	users, err := h.store.RoomUsers(c.Request.Context(), room)
	if err != nil {
		logrus.WithError(err).WithField("room", room).Error("Handler.Users: Failed to load room members")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to load room members")
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room": room, "users": users})
}
