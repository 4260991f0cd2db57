package memstore

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

// writer stores the body when Write or Append is called. Appends may be
// repeated; a full Write may only happen once.
type writer struct {
	store *Store
	path  string
	op    stowdav.OpWrite
	state writerState
}

func (w *writer) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

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

	if err := w.checkNotDir(); err != nil {
		return err
	}

	w.state = stateWritten
	w.store.put(w.path, bytes.Clone(p), w.op.ContentType, false)

	return nil
}

func (w *writer) Append(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch w.state {
	case stateClosed:
		return fmt.Errorf("append %s: %w", w.path, stowdav.ErrClosed)
	case stateWritten:
		return fmt.Errorf("append %s: %w: writer already consumed", w.path, stowdav.ErrInvalidInput)
	}

	if err := w.checkNotDir(); err != nil {
		return err
	}

	w.state = stateAppending
	w.store.put(w.path, bytes.Clone(p), w.op.ContentType, true)

	return nil
}

func (w *writer) Close() error {
	w.state = stateClosed
	return nil
}

func (w *writer) checkNotDir() error {
	w.store.mu.RLock()
	_, isDir := w.store.isDir(w.path)
	w.store.mu.RUnlock()

	if isDir {
		return fmt.Errorf("write %s: %w: path is a directory", w.path, stowdav.ErrAlreadyExists)
	}
	return nil
}
