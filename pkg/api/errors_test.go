package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/buildscout/pkg/services"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "validation error maps to 400",
			err:        services.NewValidationError("prompt", "required"),
			expectCode: http.StatusBadRequest,
			expectMsg:  "required",
		},
		{
			name:       "not found maps to 404",
			err:        fmt.Errorf("wrapped: %w", services.ErrNotFound),
			expectCode: http.StatusNotFound,
			expectMsg:  "resource not found",
		},
		{
			name:       "conflict maps to 409",
			err:        fmt.Errorf("%w: session still running", services.ErrConflict),
			expectCode: http.StatusConflict,
			expectMsg:  "not in a state",
		},
		{
			name:       "unavailable maps to 503",
			err:        fmt.Errorf("%w: queue full", services.ErrUnavailable),
			expectCode: http.StatusServiceUnavailable,
			expectMsg:  "retry later",
		},
		{
			name:       "history disabled maps to 404",
			err:        services.ErrHistoryDisabled,
			expectCode: http.StatusNotFound,
			expectMsg:  "history is disabled",
		},
		{
			name:       "unknown error maps to 500",
			err:        fmt.Errorf("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.Equal(t, tt.expectCode, he.Code)
			assert.Contains(t, he.Error(), tt.expectMsg)
		})
	}
}
