package v1

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"webstats/internal/query"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"request error", &query.InvalidFilterError{Name: "planet"}, http.StatusBadRequest, query.CodeInvalidFilter},
		{"execution error", &query.ExecutionError{Phase: "aggregate", Err: errors.New("no such table: sessions")}, http.StatusInternalServerError, query.CodeExecution},
		{"deadline", &query.ExecutionError{Phase: "aggregate", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, query.CodeTimeout},
		{"task never started", context.DeadlineExceeded, http.StatusGatewayTimeout, query.CodeTimeout},
		{"canceled", &query.ExecutionError{Phase: "attribution", Err: context.Canceled}, http.StatusInternalServerError, query.CodeExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
			assert.Equal(t, tt.code, errorBody(tt.err).Code)
		})
	}

	t.Run("execution details are not exposed", func(t *testing.T) {
		body := errorBody(&query.ExecutionError{Phase: "aggregate", Err: errors.New("no such table: sessions")})
		assert.NotContains(t, body.Error, "sessions")
	})
}
