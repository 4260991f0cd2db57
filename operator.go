package stowdav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Operator is a shared, reference-counted handle to an Accessor. It validates
// paths and enforces the accessor's capabilities before delegating.
//
// A new Operator holds one reference. Clone adds one and Close releases one;
// the accessor is closed when the last reference is released.
type Operator struct {
	acc       Accessor
	info      Capability
	refs      atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

// NewOperator wraps acc in an Operator holding a single reference.
func NewOperator(acc Accessor) (*Operator, error) {
	if acc == nil {
		return nil, fmt.Errorf("new operator: %w: accessor cannot be nil", ErrInvalidInput)
	}

	op := &Operator{
		acc:  acc,
		info: acc.Info(),
	}
	op.refs.Store(1)

	return op, nil
}

// Info returns the accessor's capabilities.
func (o *Operator) Info() Capability {
	return o.info
}

// Clone returns o with one more reference held. It is O(1) and every clone
// observes the same backend. Cloning a fully closed Operator does not revive
// it: the returned handle keeps failing with ErrClosed.
func (o *Operator) Clone() *Operator {
	for {
		n := o.refs.Load()
		if n <= 0 || o.refs.CompareAndSwap(n, n+1) {
			return o
		}
	}
}

// Refs reports the number of references currently held.
func (o *Operator) Refs() int64 {
	return o.refs.Load()
}

// Close releases one reference. Releasing the last one closes the accessor if
// it implements io.Closer. Extra calls after that are no-ops.
func (o *Operator) Close() error {
	for {
		n := o.refs.Load()
		if n <= 0 {
			return o.closeErr
		}
		if !o.refs.CompareAndSwap(n, n-1) {
			continue
		}
		if n > 1 {
			return nil
		}
		break
	}

	o.closeOnce.Do(func() {
		if c, ok := o.acc.(io.Closer); ok {
			o.closeErr = c.Close()
		}
	})

	return o.closeErr
}

func (o *Operator) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.refs.Load() <= 0 {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return nil
}

func (o *Operator) filePath(op, p string) (string, error) {
	p = CleanPath(p)
	if !IsValidPath(p) {
		return "", fmt.Errorf("%s: %w: invalid path %q", op, ErrInvalidInput, p)
	}
	return p, nil
}

func (o *Operator) anyPath(op, p string) (string, error) {
	p = CleanPath(p)
	if p == "" {
		return p, nil
	}
	return o.filePath(op, p)
}

func unsupported(op string) error {
	return fmt.Errorf("%s: %w", op, ErrUnsupported)
}

// Writer opens a single upload to path.
func (o *Operator) Writer(ctx context.Context, path string, op OpWrite) (Writer, error) {
	if err := o.check(ctx, "writer"); err != nil {
		return nil, err
	}
	if !o.info.Write {
		return nil, unsupported("writer")
	}
	if op.Append && !o.info.Append {
		return nil, unsupported("writer")
	}

	p, err := o.filePath("writer", path)
	if err != nil {
		return nil, err
	}

	return o.acc.Writer(ctx, p, op)
}

// Write uploads data to path with a single Writer and closes it.
func (o *Operator) Write(ctx context.Context, path string, data []byte, op OpWrite) error {
	op.Append = false

	w, err := o.Writer(ctx, path, op)
	if err != nil {
		return err
	}

	writeErr := w.Write(ctx, data)
	closeErr := w.Close()

	return errors.Join(writeErr, closeErr)
}

// Append adds data to the end of path on backends that support it.
func (o *Operator) Append(ctx context.Context, path string, data []byte) error {
	w, err := o.Writer(ctx, path, OpWrite{Append: true})
	if err != nil {
		return err
	}

	appendErr := w.Append(ctx, data)
	closeErr := w.Close()

	return errors.Join(appendErr, closeErr)
}

// Reader returns a byte range of path.
func (o *Operator) Reader(ctx context.Context, path string, op OpRead) (io.ReadCloser, error) {
	if err := o.check(ctx, "read"); err != nil {
		return nil, err
	}
	if !o.info.Read {
		return nil, unsupported("read")
	}
	if op.Offset < 0 || op.Length < 0 {
		return nil, fmt.Errorf("read: %w: negative range", ErrInvalidInput)
	}

	p, err := o.filePath("read", path)
	if err != nil {
		return nil, err
	}

	return o.acc.Read(ctx, p, op)
}

// Read returns the whole content of path.
func (o *Operator) Read(ctx context.Context, path string) ([]byte, error) {
	rc, err := o.Reader(ctx, path, OpRead{})
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	return buf.Bytes(), nil
}

// Stat returns metadata for path. The root is always a directory.
func (o *Operator) Stat(ctx context.Context, path string) (Metadata, error) {
	if err := o.check(ctx, "stat"); err != nil {
		return Metadata{}, err
	}

	p, err := o.anyPath("stat", path)
	if err != nil {
		return Metadata{}, err
	}

	if p == "" {
		return Metadata{Path: "/", Mode: ModeDir}, nil
	}

	if !o.info.Stat {
		return Metadata{}, unsupported("stat")
	}

	return o.acc.Stat(ctx, p)
}

// List returns the direct children of the directory at path.
func (o *Operator) List(ctx context.Context, path string) ([]Entry, error) {
	if err := o.check(ctx, "list"); err != nil {
		return nil, err
	}
	if !o.info.List {
		return nil, unsupported("list")
	}

	p, err := o.anyPath("list", path)
	if err != nil {
		return nil, err
	}

	return o.acc.List(ctx, p)
}

// Delete removes path. Missing paths are not an error.
func (o *Operator) Delete(ctx context.Context, path string) error {
	if err := o.check(ctx, "delete"); err != nil {
		return err
	}
	if !o.info.Delete {
		return unsupported("delete")
	}

	p, err := o.filePath("delete", path)
	if err != nil {
		return err
	}

	if err := o.acc.Delete(ctx, p); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	return nil
}

// CreateDir creates the directory at path.
func (o *Operator) CreateDir(ctx context.Context, path string) error {
	if err := o.check(ctx, "create dir"); err != nil {
		return err
	}
	if !o.info.CreateDir {
		return unsupported("create dir")
	}

	p, err := o.filePath("create dir", path)
	if err != nil {
		return err
	}

	return o.acc.CreateDir(ctx, p)
}
