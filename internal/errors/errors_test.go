package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/victornm/giveboard/internal/errors"
)

func TestFromHTTPStatus(t *testing.T) {
	tests := map[string]struct {
		status int
		want   errors.Code
	}{
		"bad request":  {status: http.StatusBadRequest, want: errors.CodeInvalidArgument},
		"unauthorized": {status: http.StatusUnauthorized, want: errors.CodeUnauthenticated},
		"forbidden":    {status: http.StatusForbidden, want: errors.CodeUnauthenticated},
		"not found":    {status: http.StatusNotFound, want: errors.CodeNotFound},
		"bad gateway":  {status: http.StatusBadGateway, want: errors.CodeUnavailable},
		"teapot":       {status: http.StatusTeapot, want: errors.CodeInternal},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.FromHTTPStatus(tt.status))
		})
	}
}

func TestError_Wrapping(t *testing.T) {
	cause := stderrors.New("boom")
	err := fmt.Errorf("load: %w", errors.New(errors.CodeUnavailable,
		errors.WithMessagef("backend down: %s", "streamers"),
		errors.WithCause(cause),
	))

	require.True(t, errors.Is(err, errors.CodeUnavailable))
	require.False(t, errors.Is(err, errors.CodeNotFound))
	require.ErrorIs(t, err, cause)

	e := errors.Convert(err)
	assert.Equal(t, "backend down: streamers", e.Message)
	assert.Equal(t, http.StatusBadGateway, e.HTTPStatusCode())
	assert.Equal(t, codes.Unavailable, e.GRPCStatus().Code())
}

func TestConvert_PlainError(t *testing.T) {
	e := errors.Convert(stderrors.New("plain"))
	assert.Equal(t, errors.CodeInternal, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatusCode())
}
