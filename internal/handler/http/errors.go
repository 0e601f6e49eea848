package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/service"
)

// HandleServiceError maps service errors to HTTP status codes. Anything not
// recognized is a server error and keeps its detail out of the response.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNameInvalid), errors.Is(err, service.ErrNameTaken):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAdminPasswordRequired), errors.Is(err, service.ErrAdminPasswordInvalid):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
