package filesystem

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sagarc03/stowdav"
)

type writerState int

const (
	stateIdle writerState = iota
	stateWritten
	stateAppending
	stateClosed
)

// writer replaces the file atomically on Write and appends in place on
// Append. Appends may be repeated; a full Write may only happen once.
type writer struct {
	s     *Store
	path  string
	op    stowdav.OpWrite
	state writerState
}

func (w *writer) Write(ctx context.Context, p []byte) error {
	switch w.state {
	case stateClosed:
		return fmt.Errorf("write %s: %w", w.path, stowdav.ErrClosed)
	case stateWritten, stateAppending:
		return fmt.Errorf("write %s: %w: writer already consumed", w.path, stowdav.ErrInvalidInput)
	}

	if w.op.ContentLength != nil && *w.op.ContentLength != int64(len(p)) {
		return fmt.Errorf("write %s: %w: declared length %d, got %d",
			w.path, stowdav.ErrInvalidInput, *w.op.ContentLength, len(p))
	}

	w.state = stateWritten

	if _, err := w.s.writeAtomic(ctx, w.path, bytes.NewReader(p)); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

func (w *writer) Append(ctx context.Context, p []byte) error {
	switch w.state {
	case stateClosed:
		return fmt.Errorf("append %s: %w", w.path, stowdav.ErrClosed)
	case stateWritten:
		return fmt.Errorf("append %s: %w: writer already consumed", w.path, stowdav.ErrInvalidInput)
	}

	w.state = stateAppending

	if err := w.s.appendFile(ctx, w.path, p); err != nil {
		return fmt.Errorf("append %s: %w", w.path, err)
	}
	return nil
}

func (w *writer) Close() error {
	w.state = stateClosed
	return nil
}
