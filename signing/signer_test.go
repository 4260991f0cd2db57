package signing_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	stowry "github.com/sagarc03/stowry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/signing"
)

var fixedTime = time.Date(2026, 1, 12, 7, 0, 0, 0, time.UTC)

func newRequest(t *testing.T, method, target string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, target, nil)
	require.NoError(t, err)
	return req
}

func TestStowry_Sign(t *testing.T) {
	t.Parallel()

	signer := signing.NewStowry("AKTEST", "secret", 10*time.Minute).WithClock(func() time.Time { return fixedTime })
	req := newRequest(t, http.MethodPut, "http://stowry.local/docs/a.txt?keep=1")

	require.NoError(t, signer.Sign(context.Background(), req))

	query := req.URL.Query()
	assert.Equal(t, "1", query.Get("keep"))
	assert.Equal(t, "AKTEST", query.Get(stowry.StowryCredentialParam))
	assert.Equal(t, "1768201200", query.Get(stowry.StowryDateParam))
	assert.Equal(t, "600", query.Get(stowry.StowryExpiresParam))

	want := stowry.Sign("secret", http.MethodPut, "/docs/a.txt", fixedTime.Unix(), 600)
	assert.Equal(t, want, query.Get(stowry.StowrySignatureParam))
}

func TestStowry_SignRootPath(t *testing.T) {
	t.Parallel()

	signer := signing.NewStowry("AKTEST", "secret", 0).WithClock(func() time.Time { return fixedTime })
	req := newRequest(t, http.MethodGet, "http://stowry.local")

	require.NoError(t, signer.Sign(context.Background(), req))

	want := stowry.Sign("secret", http.MethodGet, "/", fixedTime.Unix(), int64(signing.DefaultExpires/time.Second))
	assert.Equal(t, want, req.URL.Query().Get(stowry.StowrySignatureParam))
}

func TestStowry_MissingCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		accessKey string
		secretKey string
	}{
		{"no access key", "", "secret"},
		{"no secret key", "AKTEST", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := newRequest(t, http.MethodPut, "http://stowry.local/a.txt")
			err := signing.NewStowry(tt.accessKey, tt.secretKey, 0).Sign(context.Background(), req)
			assert.ErrorIs(t, err, stowdav.ErrSigningFailed)
			assert.Empty(t, req.URL.RawQuery)
		})
	}
}

func TestSigV4_Sign(t *testing.T) {
	t.Parallel()

	signer := signing.NewSigV4("AKIATEST", "secret", "eu-west-1", "", 5*time.Minute).
		WithClock(func() time.Time { return fixedTime })
	req := newRequest(t, http.MethodPut, "http://minio.local:9000/bucket/docs/a.txt")
	req.Header.Set("Content-Type", "text/plain")

	require.NoError(t, signer.Sign(context.Background(), req))

	assert.Equal(t, "minio.local:9000", req.URL.Host)
	assert.Equal(t, "/bucket/docs/a.txt", req.URL.Path)

	query := req.URL.Query()
	assert.Equal(t, "AWS4-HMAC-SHA256", query.Get("X-Amz-Algorithm"))
	assert.Equal(t, "AKIATEST/20260112/eu-west-1/s3/aws4_request", query.Get("X-Amz-Credential"))
	assert.Equal(t, "20260112T070000Z", query.Get("X-Amz-Date"))
	assert.Equal(t, "300", query.Get("X-Amz-Expires"))
	assert.Len(t, query.Get("X-Amz-Signature"), 64)
	assert.True(t, strings.Contains(query.Get("X-Amz-SignedHeaders"), "host"))
	assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))
}

func TestSigV4_EscapedPathVerifies(t *testing.T) {
	t.Parallel()

	for _, target := range []string{
		"http://dav.local/plain.txt",
		"http://dav.local/my%20file.txt",
	} {
		signer := signing.NewSigV4("AKIATEST", "secret", "", "", time.Minute).WithClock(clockAt(fixedTime))
		verifier := signing.NewSigV4Verifier("", "", testKeys).WithClock(clockAt(fixedTime))

		req := newRequest(t, http.MethodPut, target)
		require.NoError(t, signer.Sign(context.Background(), req))
		assert.NotContains(t, req.URL.String(), "%25", target)
		assert.NoError(t, verifier.Verify(req), target)
	}
}

func TestSigV4_Deterministic(t *testing.T) {
	t.Parallel()

	sign := func() string {
		signer := signing.NewSigV4("AKIATEST", "secret", "", "", 0).WithClock(func() time.Time { return fixedTime })
		req := newRequest(t, http.MethodGet, "http://s3.local/bucket/a.txt")
		require.NoError(t, signer.Sign(context.Background(), req))
		return req.URL.Query().Get("X-Amz-Signature")
	}

	assert.Equal(t, sign(), sign())
}

func TestSigV4_MissingCredentials(t *testing.T) {
	t.Parallel()

	req := newRequest(t, http.MethodPut, "http://s3.local/bucket/a.txt")
	err := signing.NewSigV4("", "", "", "", 0).Sign(context.Background(), req)
	assert.ErrorIs(t, err, stowdav.ErrSigningFailed)
}

func TestAnonymous_Sign(t *testing.T) {
	t.Parallel()

	req := newRequest(t, http.MethodPut, "http://public.local/a.txt")
	require.NoError(t, signing.Anonymous{}.Sign(context.Background(), req))
	assert.Empty(t, req.URL.RawQuery)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, signing.Anonymous{}.Sign(ctx, req), context.Canceled)
}
