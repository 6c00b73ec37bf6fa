package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"plugindir/internal/db"
	"plugindir/internal/services"

	"github.com/gin-gonic/gin"
)

// 错误类型
const (
	ErrTypeInvalidRequest = "invalid_request"
	ErrTypeNotFound       = "not_found"
	ErrTypeConflict       = "conflict"
	ErrTypeInternal       = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response except comment rejections.
type ErrorResponse struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

func respondError(c *gin.Context, code int, errorType, message, details string) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		ErrorType: errorType,
		Message:   message,
		Details:   details,
	})
}

// RenderError maps a service error to its HTTP status. Document store failures are logged
// and hidden behind a generic message.
func RenderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrSubjectNotFound):
		respondError(c, http.StatusNotFound, ErrTypeNotFound, "Subject not found", "")
	case errors.Is(err, db.ErrSubjectExists):
		respondError(c, http.StatusConflict, ErrTypeConflict, "Subject already exists", "")
	case errors.Is(err, services.ErrInvalidDirection):
		respondError(c, http.StatusBadRequest, ErrTypeInvalidRequest, "Direction must be up or down", "")
	default:
		_ = c.Error(err)
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, ErrTypeInternal, "Something went wrong, please try again later", "")
	}
}

func renderBindError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, ErrTypeInvalidRequest, "Invalid request body", err.Error())
}
