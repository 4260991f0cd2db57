package signing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/sagarc03/stowdav"
)

const unsignedPayload = "UNSIGNED-PAYLOAD"

// SigV4 presigns requests with AWS Signature Version 4.
type SigV4 struct {
	creds   aws.CredentialsProvider
	region  string
	service string
	expires time.Duration
	signer  *v4.Signer
	now     func() time.Time
}

// NewSigV4 returns a SigV4 signer for static credentials. An empty region
// defaults to us-east-1 and an empty service to s3.
func NewSigV4(accessKey, secretKey, region, service string, expires time.Duration) *SigV4 {
	if region == "" {
		region = "us-east-1"
	}
	if service == "" {
		service = "s3"
	}
	if expires <= 0 {
		expires = DefaultExpires
	}

	return &SigV4{
		creds:   credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		region:  region,
		service: service,
		expires: expires,
		// The signer reads URL.EscapedPath, which must not be escaped again.
		signer: v4.NewSigner(func(o *v4.SignerOptions) {
			o.DisableURIPathEscaping = true
		}),
		now: time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *SigV4) WithClock(now func() time.Time) *SigV4 {
	s.now = now
	return s
}

func (s *SigV4) Sign(ctx context.Context, req *http.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("sign %s %s: %w: %w", req.Method, req.URL.Path, stowdav.ErrSigningFailed, err)
	}
	if !creds.HasKeys() {
		return fmt.Errorf("sign %s %s: %w: missing access or secret key",
			req.Method, req.URL.Path, stowdav.ErrSigningFailed)
	}

	query := req.URL.Query()
	query.Set("X-Amz-Expires", strconv.FormatInt(int64(s.expires/time.Second), 10))
	req.URL.RawQuery = query.Encode()

	signedURI, signedHeaders, err := s.signer.PresignHTTP(ctx, creds, req, unsignedPayload, s.service, s.region, s.now())
	if err != nil {
		return fmt.Errorf("sign %s %s: %w: %w", req.Method, req.URL.Path, stowdav.ErrSigningFailed, err)
	}

	u, err := url.Parse(signedURI)
	if err != nil {
		return fmt.Errorf("sign %s %s: %w: %w", req.Method, req.URL.Path, stowdav.ErrSigningFailed, err)
	}
	req.URL = u

	for k, vals := range signedHeaders {
		if http.CanonicalHeaderKey(k) == "Host" {
			continue
		}
		req.Header[k] = vals
	}

	return nil
}
