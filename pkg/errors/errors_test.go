package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageAndUnwrap(t *testing.T) {
	base := New("SOMETHING_BROKE", "Something broke", http.StatusBadGateway)
	require.Equal(t, "Something broke", base.Error())

	inner := errors.New("dial tcp: refused")
	wrapped := base.WithInternal(inner)
	require.Equal(t, "Something broke: dial tcp: refused", wrapped.Error())
	require.ErrorIs(t, wrapped, inner)

	// WithInternal copies; the original stays clean.
	require.Nil(t, base.Internal)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrNotFound)
	require.Equal(t, ErrNotFound.Code, appErr.Code)
	require.Equal(t, http.StatusNotFound, appErr.StatusCode)

	// Generic errors become internal server errors but keep the cause.
	cause := errors.New("boom")
	appErr = FromError(cause)
	require.Equal(t, ErrInternalServer.Code, appErr.Code)
	require.ErrorIs(t, appErr, cause)

	// Wrapped AppErrors are still recovered.
	appErr = FromError(Wrap(cause, "db query failed"))
	require.Equal(t, "INTERNAL_ERROR", appErr.Code)
	require.Equal(t, "db query failed", appErr.Message)
}

func TestConstructors(t *testing.T) {
	badReq := NewBadRequest("name is required")
	require.Equal(t, ErrBadRequest.Code, badReq.Code)
	require.Equal(t, http.StatusBadRequest, badReq.StatusCode)
	require.Equal(t, "name is required", badReq.Message)

	conflict := NewConflict("ALREADY_THERE", "Already there")
	require.Equal(t, "ALREADY_THERE", conflict.Code)
	require.Equal(t, http.StatusConflict, conflict.StatusCode)
}
