// Package signing attaches backend authentication to outbound requests.
//
// Signers presign through the query string so the same request shape works
// for stowry servers (native X-Stowry-* parameters) and S3-compatible
// endpoints (X-Amz-* parameters).
package signing

import (
	"context"
	"net/http"
	"time"
)

// DefaultExpires is how long a signed request stays valid.
const DefaultExpires = 15 * time.Minute

// Signer authenticates req in place. Errors wrap stowdav.ErrSigningFailed.
type Signer interface {
	Sign(ctx context.Context, req *http.Request) error
}

// Anonymous leaves requests untouched.
type Anonymous struct{}

func (Anonymous) Sign(ctx context.Context, _ *http.Request) error {
	return ctx.Err()
}
