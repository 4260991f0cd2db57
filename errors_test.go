package stowdav_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	errs "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/stowdav"
)

func TestKindFromStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, stowdav.ErrNotFound},
		{http.StatusUnauthorized, stowdav.ErrPermissionDenied},
		{http.StatusForbidden, stowdav.ErrPermissionDenied},
		{http.StatusConflict, stowdav.ErrAlreadyExists},
		{http.StatusPreconditionFailed, stowdav.ErrConditionNotMatch},
		{http.StatusTooManyRequests, stowdav.ErrRateLimited},
		{http.StatusInternalServerError, stowdav.ErrUnavailable},
		{http.StatusBadGateway, stowdav.ErrUnavailable},
		{http.StatusServiceUnavailable, stowdav.ErrUnavailable},
		{http.StatusGatewayTimeout, stowdav.ErrUnavailable},
		{http.StatusBadRequest, stowdav.ErrUnexpected},
		{http.StatusTeapot, stowdav.ErrUnexpected},
		{http.StatusNotImplemented, stowdav.ErrUnexpected},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Same(t, tt.want, stowdav.KindFromStatus(tt.status))
		})
	}
}

func TestBackendError_Unwrap(t *testing.T) {
	t.Parallel()

	body := []byte(`{"error":"not_found","message":"object not found"}`)
	be := stowdav.NewBackendError(http.StatusNotFound, body)
	err := fmt.Errorf("write a.txt: %w", be)

	assert.ErrorIs(t, err, stowdav.ErrNotFound)
	assert.NotErrorIs(t, err, stowdav.ErrUnavailable)

	var got *stowdav.BackendError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, body, got.Body)
}

func TestBackendError_Error(t *testing.T) {
	t.Parallel()

	be := stowdav.NewBackendError(http.StatusForbidden, nil)
	assert.Equal(t, "backend rejected request: 403: Forbidden", be.Error())

	be.Code = "AccessDenied"
	be.Message = "Access Denied"
	assert.Equal(t, "backend rejected request: 403 AccessDenied: Access Denied", be.Error())
}

func TestErrorKinds_Retryable(t *testing.T) {
	t.Parallel()

	retryable := []error{
		stowdav.ErrRateLimited,
		stowdav.ErrUnavailable,
		stowdav.ErrTransportFailed,
	}
	for _, err := range retryable {
		assert.True(t, errs.IsRetryable(fmt.Errorf("op: %w", err)), "%v should be retryable", err)
	}

	permanent := []error{
		stowdav.ErrUnsupported,
		stowdav.ErrSigningFailed,
		stowdav.ErrNotFound,
		stowdav.ErrPermissionDenied,
	}
	for _, err := range permanent {
		assert.False(t, errs.IsRetryable(fmt.Errorf("op: %w", err)), "%v should not be retryable", err)
	}
}

func TestErrorKinds_Distinct(t *testing.T) {
	t.Parallel()

	assert.False(t, errors.Is(stowdav.ErrClosed, stowdav.ErrInvalidInput))
	assert.Equal(t, errs.CodeNotImplemented, errs.GetCode(fmt.Errorf("append: %w", stowdav.ErrUnsupported)))
}

func TestBackendError_SynthesizeBody(t *testing.T) {
	t.Parallel()

	be := stowdav.NewBackendError(http.StatusForbidden, nil)
	be.Code = "AccessDenied"
	be.Message = "Access Denied"
	be.RequestID = "req-1"
	be.SynthesizeBody()

	body := string(be.Body)
	assert.Contains(t, body, "<Code>AccessDenied</Code>")
	assert.Contains(t, body, "<Message>Access Denied</Message>")
	assert.Contains(t, body, "<RequestId>req-1</RequestId>")

	raw := []byte("raw")
	kept := stowdav.NewBackendError(http.StatusForbidden, raw)
	kept.Code = "AccessDenied"
	kept.SynthesizeBody()
	assert.Equal(t, raw, kept.Body)

	bare := stowdav.NewBackendError(http.StatusForbidden, nil)
	bare.SynthesizeBody()
	assert.Empty(t, bare.Body)
}
