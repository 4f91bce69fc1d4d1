package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", Invalid("team1Score", "must not be negative"), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"wrapped validation", fmt.Errorf("patch: %w", Invalid("lastPlay", "too long")), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"not found", NotFound("game", uuid.New()), http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"forbidden", fmt.Errorf("drag: %w", ErrForbidden), http.StatusForbidden, "PERMISSION_DENIED"},
		{"persistence", Persistence("patch game", errors.New("connection reset")), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.want)
			}
			if got := Code(tt.err); got != tt.code {
				t.Fatalf("Code() = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestPersistenceKeepsClassifiedErrors(t *testing.T) {
	nf := NotFound("game", uuid.New())
	if got := Persistence("get game", nf); got != nf {
		t.Fatalf("expected not-found to pass through, got %v", got)
	}

	wrapped := Persistence("get game", errors.New("timeout"))
	if !IsRetryable(wrapped) {
		t.Fatalf("expected retryable error, got %v", wrapped)
	}
	if again := Persistence("outer", wrapped); again != wrapped {
		t.Fatalf("expected persistence error to be left alone")
	}
	if Persistence("noop", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
