package httpserver

import (
	"errors"
	"net/http"

	"atomovision-editorial/internal/domain"
	"github.com/gin-gonic/gin"
)

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, apiResponse{Success: true, Data: data})
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), apiResponse{Success: false, Error: publicMessage(err)})
}

// statusFor maps the typed error taxonomy to HTTP statuses. Callers never
// match on message strings.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGateway), errors.Is(err, domain.ErrNotification):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps internals out of responses: not-found style denials
// stay non-distinguishing, unexpected errors stay generic.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrExpired):
		return "download link expired"
	case errors.Is(err, domain.ErrLimitExceeded):
		return "download limit exceeded"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid state"
	case errors.Is(err, domain.ErrGateway):
		return "payment gateway unavailable"
	case errors.Is(err, domain.ErrNotification):
		return "email delivery failed"
	default:
		return "internal error"
	}
}
