package signing_test

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	stowry "github.com/sagarc03/stowry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/signing"
)

func lookup(keys map[string]string) signing.SecretLookup {
	return func(accessKey string) (string, error) {
		if s, ok := keys[accessKey]; ok {
			return s, nil
		}
		return "", fmt.Errorf("%s: %w", accessKey, stowdav.ErrNotFound)
	}
}

var testKeys = lookup(map[string]string{"AKIATEST": "secret"})

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSigV4Verifier_RoundTrip(t *testing.T) {
	t.Parallel()

	signer := signing.NewSigV4("AKIATEST", "secret", "eu-west-1", "", 5*time.Minute).WithClock(clockAt(fixedTime))
	verifier := signing.NewSigV4Verifier("eu-west-1", "", testKeys).WithClock(clockAt(fixedTime.Add(time.Minute)))

	req := newRequest(t, http.MethodGet, "http://dav.local:4918/docs/a.txt")
	assert.False(t, verifier.Signed(req))
	require.NoError(t, signer.Sign(context.Background(), req))
	assert.True(t, verifier.Signed(req))

	require.NoError(t, verifier.Verify(req))
}

func TestSigV4Verifier_Rejects(t *testing.T) {
	t.Parallel()

	sign := func(t *testing.T, method, target string) *http.Request {
		t.Helper()
		req := newRequest(t, method, target)
		signer := signing.NewSigV4("AKIATEST", "secret", "", "", time.Minute).WithClock(clockAt(fixedTime))
		require.NoError(t, signer.Sign(context.Background(), req))
		return req
	}

	tests := []struct {
		name     string
		verifier *signing.SigV4Verifier
		mutate   func(*http.Request)
		want     string
	}{
		{
			name:     "expired",
			verifier: signing.NewSigV4Verifier("", "", testKeys).WithClock(clockAt(fixedTime.Add(2 * time.Minute))),
			want:     "expired",
		},
		{
			name:     "wrong region",
			verifier: signing.NewSigV4Verifier("eu-west-1", "", testKeys).WithClock(clockAt(fixedTime)),
			want:     "region mismatch",
		},
		{
			name:     "unknown key",
			verifier: signing.NewSigV4Verifier("", "", lookup(nil)).WithClock(clockAt(fixedTime)),
			want:     "invalid access key",
		},
		{
			name:     "other method",
			verifier: signing.NewSigV4Verifier("", "", testKeys).WithClock(clockAt(fixedTime)),
			mutate:   func(r *http.Request) { r.Method = http.MethodDelete },
			want:     "signature mismatch",
		},
		{
			name:     "other path",
			verifier: signing.NewSigV4Verifier("", "", testKeys).WithClock(clockAt(fixedTime)),
			mutate:   func(r *http.Request) { r.URL.Path = "/docs/b.txt" },
			want:     "signature mismatch",
		},
		{
			name:     "missing parameter",
			verifier: signing.NewSigV4Verifier("", "", testKeys).WithClock(clockAt(fixedTime)),
			mutate: func(r *http.Request) {
				q := r.URL.Query()
				q.Del("X-Amz-Date")
				r.URL.RawQuery = q.Encode()
			},
			want: "missing required signature parameters",
		},
		{
			name:     "expires out of range",
			verifier: signing.NewSigV4Verifier("", "", testKeys).WithClock(clockAt(fixedTime)),
			mutate: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("X-Amz-Expires", "999999999")
				r.URL.RawQuery = q.Encode()
			},
			want: "X-Amz-Expires",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := sign(t, http.MethodGet, "http://dav.local/docs/a.txt")
			if tt.mutate != nil {
				tt.mutate(req)
			}

			err := tt.verifier.Verify(req)
			require.ErrorIs(t, err, stowdav.ErrPermissionDenied)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStowryVerifier(t *testing.T) {
	t.Parallel()

	signer := signing.NewStowry("AKIATEST", "secret", 10*time.Minute).WithClock(clockAt(fixedTime))
	verifier := signing.NewStowryVerifier(testKeys).WithClock(clockAt(fixedTime.Add(time.Minute)))

	req := newRequest(t, http.MethodPut, "http://dav.local/docs/a.txt")
	require.NoError(t, signer.Sign(context.Background(), req))
	assert.True(t, verifier.Signed(req))
	require.NoError(t, verifier.Verify(req))

	late := signing.NewStowryVerifier(testKeys).WithClock(clockAt(fixedTime.Add(time.Hour)))
	assert.ErrorIs(t, late.Verify(req), stowdav.ErrPermissionDenied)

	req.Method = http.MethodGet
	assert.ErrorIs(t, verifier.Verify(req), stowdav.ErrPermissionDenied)

	forged := newRequest(t, http.MethodGet, "http://dav.local/docs/a.txt")
	forged.URL.RawQuery = url.Values{
		stowry.StowryCredentialParam: {"AKIATEST"},
		stowry.StowryDateParam:       {"not-a-number"},
		stowry.StowryExpiresParam:    {"60"},
		stowry.StowrySignatureParam:  {"abc"},
	}.Encode()
	err := verifier.Verify(forged)
	require.ErrorIs(t, err, stowdav.ErrPermissionDenied)
	assert.Contains(t, err.Error(), "missing required signature parameters")
}

func TestAnyVerifier(t *testing.T) {
	t.Parallel()

	v := signing.AnyVerifier{
		signing.NewStowryVerifier(testKeys).WithClock(clockAt(fixedTime)),
		signing.NewSigV4Verifier("", "", testKeys).WithClock(clockAt(fixedTime)),
	}

	plain := newRequest(t, http.MethodGet, "http://dav.local/a.txt")
	assert.False(t, v.Signed(plain))
	assert.ErrorIs(t, v.Verify(plain), stowdav.ErrPermissionDenied)

	for _, s := range []signing.Signer{
		signing.NewStowry("AKIATEST", "secret", time.Minute).WithClock(clockAt(fixedTime)),
		signing.NewSigV4("AKIATEST", "secret", "", "", time.Minute).WithClock(clockAt(fixedTime)),
	} {
		req := newRequest(t, http.MethodGet, "http://dav.local/a.txt")
		require.NoError(t, s.Sign(context.Background(), req))
		assert.True(t, v.Signed(req))
		assert.NoError(t, v.Verify(req))
	}
}
