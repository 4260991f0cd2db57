// Package stowdav exposes object storage as a WebDAV filesystem.
//
// Storage backends implement Accessor. Every backend is wrapped in an
// Operator, a reference-counted handle that validates paths and enforces the
// backend's Capability set before delegating. Uploads go through a Writer,
// which accepts exactly one Write and is always safe to Close.
//
// # Key Components
//
//   - Operator: shared handle used by the WebDAV adapter and the CLI
//   - Accessor: backend contract (httpstore, s3store, miniostore, filesystem, memstore)
//   - Writer: single-shot upload with an optional Append capability
//   - BackendError: non-success backend response classified by status
//
// # Errors
//
// Error kinds are sentinel values. Backend responses are classified by
// status code:
//
//	404           ErrNotFound
//	401, 403      ErrPermissionDenied
//	409           ErrAlreadyExists
//	412           ErrConditionNotMatch
//	429           ErrRateLimited
//	500, 502-504  ErrUnavailable
//	anything else ErrUnexpected
//
// # Example Usage
//
//	op, err := stowdav.NewOperator(memstore.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer op.Close()
//
//	err = op.Write(ctx, "docs/readme.txt", data, stowdav.OpWrite{ContentType: "text/plain"})
//
// See the davfs package for the WebDAV adapter and the gateway package for
// the HTTP service.
package stowdav
