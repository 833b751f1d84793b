package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/buildscout/pkg/services"
)

// HTTPError is an error with the status code it is reported with.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// newHTTPError creates an HTTPError.
func newHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error) *HTTPError {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return newHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, services.ErrNotFound) {
		return newHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, services.ErrConflict) {
		return newHTTPError(http.StatusConflict, "session is not in a state that allows this operation")
	}
	if errors.Is(err, services.ErrUnavailable) {
		return newHTTPError(http.StatusServiceUnavailable, "investigation capacity exhausted, retry later")
	}
	if errors.Is(err, services.ErrHistoryDisabled) {
		return newHTTPError(http.StatusNotFound, "investigation history is disabled")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return newHTTPError(http.StatusInternalServerError, "internal server error")
}

// abortWithError writes he as the JSON error response and stops the chain.
func abortWithError(c *gin.Context, he *HTTPError) {
	c.AbortWithStatusJSON(he.Code, &ErrorResponse{Error: he.Message})
}
