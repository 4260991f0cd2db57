// Package gateway serves a webdav.FileSystem over HTTP.
//
// A Service builds one golang.org/x/net/webdav handler at construction and
// routes every method on every path to it through a chi router. The outer
// handler is total: panics are recovered and turned into 500 responses, and
// every request is logged once it completes.
//
// # Middleware
//
// Requests pass through, in order:
//
//   - request ID (chi)
//   - access log (slog)
//   - panic recovery
//   - CORS, when enabled
//   - concurrency limit, when set (503 with Retry-After)
//   - presigned URL verification, when a Verifier is set with basic auth
//   - HTTP basic authentication, when an Authenticator is set
//
// A request that passes presigned verification skips basic authentication.
// A request with a bad signature gets 403.
//
// # Serving
//
//	svc, err := gateway.New(gateway.Config{Addr: ":4918"}, davfs.New(op),
//	    gateway.WithLogger(logger),
//	    gateway.WithMaxConcurrent(256),
//	)
//	if err != nil {
//	    return err
//	}
//	return svc.Serve(ctx) // returns after ctx is cancelled and connections drain
package gateway
