package signing

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	stowry "github.com/sagarc03/stowry-go"

	"github.com/sagarc03/stowdav"
)

// Stowry signs requests with the stowry native query-string scheme.
type Stowry struct {
	accessKey string
	secretKey string
	expires   time.Duration
	now       func() time.Time
}

// NewStowry returns a Stowry signer. A zero expires uses DefaultExpires.
func NewStowry(accessKey, secretKey string, expires time.Duration) *Stowry {
	if expires <= 0 {
		expires = DefaultExpires
	}
	return &Stowry{
		accessKey: accessKey,
		secretKey: secretKey,
		expires:   expires,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Stowry) WithClock(now func() time.Time) *Stowry {
	s.now = now
	return s
}

func (s *Stowry) Sign(ctx context.Context, req *http.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.accessKey == "" || s.secretKey == "" {
		return fmt.Errorf("sign %s %s: %w: missing access or secret key",
			req.Method, req.URL.Path, stowdav.ErrSigningFailed)
	}

	path := req.URL.Path
	if path == "" {
		path = "/"
	}

	timestamp := s.now().Unix()
	expires := int64(s.expires / time.Second)
	sig := stowry.Sign(s.secretKey, req.Method, path, timestamp, expires)

	query := req.URL.Query()
	query.Set(stowry.StowryCredentialParam, s.accessKey)
	query.Set(stowry.StowryDateParam, strconv.FormatInt(timestamp, 10))
	query.Set(stowry.StowryExpiresParam, strconv.FormatInt(expires, 10))
	query.Set(stowry.StowrySignatureParam, sig)
	req.URL.RawQuery = query.Encode()

	return nil
}
