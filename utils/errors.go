package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"multimodal-rag-platform/services"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithServiceError maps core error types onto HTTP responses:
// validation errors are 400, an empty store is 404 with a distinct no_data
// code so the UI can prompt for uploads, and capability outages are 503.
func RespondWithServiceError(c *gin.Context, err error) {
	switch {
	case services.IsValidationError(err):
		RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrNoData):
		RespondWithError(c, http.StatusNotFound, "no_data",
			"No documents have been ingested yet. Upload documents first.", nil)
	case errors.Is(err, services.ErrCapabilityUnavailable):
		RespondWithError(c, http.StatusServiceUnavailable, "capability_unavailable",
			err.Error(), nil)
	default:
		RespondWithInternalError(c, err.Error(), nil)
	}
}
