package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/infrastructure/parser"
	"BookPublisher/internal/infrastructure/storage"
)

// APIError is the JSON error body.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError for JSON responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes err as JSON.
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondOK writes payload as JSON.
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// HealthCheck answers liveness probes.
func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMalformedRecord), errors.Is(err, domain.ErrInvalidChapterID):
		return http.StatusBadRequest, "malformed_record"
	case errors.Is(err, storage.ErrChapterBusy):
		return http.StatusConflict, "chapter_busy"
	case errors.Is(err, parser.ErrContainerNotFound), errors.Is(err, parser.ErrNoContent):
		return http.StatusUnprocessableEntity, "no_content"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
