package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, "validation failed", err.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	assert.Same(t, originalErr, wrapped.Err)
	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.Same(t, originalErr, errors.Unwrap(wrapped))
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "resource not found"},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_StatusCode(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
	}{
		{"not found", NotFoundWithID("Room type", "abc"), http.StatusNotFound},
		{"validation", Validation("bad", nil), http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad"), http.StatusBadRequest},
		{"conflict", Conflict("busy"), http.StatusConflict},
		{"insufficient inventory", InsufficientInventory(3, 2), http.StatusConflict},
		{"unauthorized", Unauthorized("no token"), http.StatusUnauthorized},
		{"too many requests", TooManyRequests("slow down"), http.StatusTooManyRequests},
		{"zero status falls back to 500", &AppError{Code: CodeInternal}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode())
		})
	}
}

func TestInsufficientInventory_Details(t *testing.T) {
	err := InsufficientInventory(3, 2)

	assert.Equal(t, CodeInsufficientInventory, err.Code)
	assert.Equal(t, 3, err.Details["requested"])
	assert.Equal(t, 2, err.Details["available"])
	assert.Contains(t, err.Message, "only 2 available")
}

func TestHasCode_SeesThroughWrapping(t *testing.T) {
	inner := Conflict("lock held")
	wrapped := fmt.Errorf("transaction failed: %w", inner)

	assert.True(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeConflict))
	assert.True(t, IsAppError(wrapped))
}

func TestAsAppError(t *testing.T) {
	t.Run("returns the wrapped app error", func(t *testing.T) {
		inner := NotFound("Booking")
		got := AsAppError(fmt.Errorf("outer: %w", inner))
		assert.Same(t, inner, got)
	})

	t.Run("wraps foreign errors as internal", func(t *testing.T) {
		cause := errors.New("boom")
		got := AsAppError(cause)
		assert.Equal(t, CodeInternal, got.Code)
		assert.Same(t, cause, got.Err)
	})
}

func TestAppError_ToJSON(t *testing.T) {
	err := NotFoundWithID("Reservation", "HULU-1:rt")

	var decoded ErrorResponse
	require.NoError(t, json.Unmarshal(err.ToJSON(), &decoded))

	assert.Equal(t, CodeNotFound, decoded.Code)
	assert.Equal(t, "Reservation not found", decoded.Message)
	assert.Equal(t, "HULU-1:rt", decoded.Details["id"])
}
