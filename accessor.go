package stowdav

import (
	"context"
	"io"
)

// Accessor is implemented by every storage backend. Paths are already
// validated and cleaned by the Operator: "" is the root and never has a
// trailing slash.
//
// Accessors must be safe for concurrent use.
type Accessor interface {
	Info() Capability

	// Writer returns a Writer for a single upload to path. Each call returns
	// an independent Writer.
	Writer(ctx context.Context, path string, op OpWrite) (Writer, error)

	// Read returns the requested byte range of path. The caller closes it.
	Read(ctx context.Context, path string, op OpRead) (io.ReadCloser, error)

	Stat(ctx context.Context, path string) (Metadata, error)

	// List returns the direct children of the directory at path.
	List(ctx context.Context, path string) ([]Entry, error)

	// Delete removes the file at path. Deleting a directory removes its
	// marker only; children are the caller's concern.
	Delete(ctx context.Context, path string) error

	CreateDir(ctx context.Context, path string) error
}

// Writer is one open write-then-close upload.
//
// A Writer is not safe for concurrent use.
type Writer interface {
	// Write uploads p as the whole object. Only one Write is accepted.
	Write(ctx context.Context, p []byte) error
	// Append adds p to the end of the object. Backends without append
	// support return ErrUnsupported.
	Append(ctx context.Context, p []byte) error
	// Close releases the writer. It is idempotent and always safe to call.
	Close() error
}
