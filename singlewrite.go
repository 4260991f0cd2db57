package stowdav

import (
	"context"
	"fmt"
)

type writeState int

const (
	writeIdle writeState = iota
	writeWriting
	writeClosed
)

// SingleWrite is the lifecycle of a one-shot Writer: Idle until the first
// Write, Writing after it, Closed after Close. Backends embed it and only
// build and classify the upload request.
//
// A SingleWrite is not safe for concurrent use.
type SingleWrite struct {
	path  string
	op    OpWrite
	state writeState
}

// NewSingleWrite returns an Idle SingleWrite for path. The append flag of op
// is cleared.
func NewSingleWrite(path string, op OpWrite) SingleWrite {
	op.Append = false
	return SingleWrite{path: path, op: op}
}

func (s *SingleWrite) Path() string {
	return s.path
}

func (s *SingleWrite) Op() OpWrite {
	return s.op
}

// Begin moves the writer from Idle to Writing before p is sent. It fails with
// ErrClosed after Close, and with ErrInvalidInput on a second Write or when
// len(p) differs from the declared ContentLength.
func (s *SingleWrite) Begin(p []byte) error {
	switch s.state {
	case writeClosed:
		return fmt.Errorf("write %s: %w", s.path, ErrClosed)
	case writeWriting:
		return fmt.Errorf("write %s: %w: writer already consumed", s.path, ErrInvalidInput)
	}

	if s.op.ContentLength != nil && *s.op.ContentLength != int64(len(p)) {
		return fmt.Errorf("write %s: %w: declared length %d, got %d",
			s.path, ErrInvalidInput, *s.op.ContentLength, len(p))
	}

	s.state = writeWriting
	return nil
}

// Append always fails with ErrUnsupported.
func (s *SingleWrite) Append(_ context.Context, _ []byte) error {
	return fmt.Errorf("append %s: %w", s.path, ErrUnsupported)
}

// Close marks the writer closed. It always returns nil.
func (s *SingleWrite) Close() error {
	s.state = writeClosed
	return nil
}
