// Package davfs presents a stowdav.Operator as a webdav.FileSystem.
//
// Every method maps onto Operator calls. Reads stream lazily with ranged
// requests; writes are buffered and uploaded with a single Backend Writer
// when the file is closed. The adapter keeps no cache, so all clones of an
// FS observe the same backend state.
package davfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"golang.org/x/net/webdav"
	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/stowdav"
)

// DefaultRemoveConcurrency bounds the parallel deletes issued by RemoveAll.
const DefaultRemoveConcurrency = 8

// FS implements webdav.FileSystem over a shared Operator.
type FS struct {
	op                *stowdav.Operator
	removeConcurrency int
}

var _ webdav.FileSystem = (*FS)(nil)

// Option configures an FS.
type Option func(*FS)

// WithRemoveConcurrency sets how many deletes RemoveAll runs at once.
func WithRemoveConcurrency(n int) Option {
	return func(f *FS) {
		if n > 0 {
			f.removeConcurrency = n
		}
	}
}

// New returns an FS backed by op. The FS takes over the caller's reference;
// Close releases it.
func New(op *stowdav.Operator, opts ...Option) *FS {
	f := &FS{op: op, removeConcurrency: DefaultRemoveConcurrency}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Clone returns an FS sharing the same Operator. It takes a new reference
// on the operator, released by the clone's Close.
func (f *FS) Clone() *FS {
	return &FS{op: f.op.Clone(), removeConcurrency: f.removeConcurrency}
}

// Operator returns the shared operator.
func (f *FS) Operator() *stowdav.Operator {
	return f.op
}

// Close releases this FS's reference on the operator.
func (f *FS) Close() error {
	return f.op.Close()
}

func (f *FS) Mkdir(ctx context.Context, name string, _ os.FileMode) error {
	p := clean(name)
	if p == "" {
		return pathError("mkdir", name, stowdav.ErrAlreadyExists)
	}

	if err := f.checkParent(ctx, p); err != nil {
		return pathError("mkdir", name, err)
	}

	if err := f.op.CreateDir(ctx, p); err != nil {
		return pathError("mkdir", name, err)
	}
	return nil
}

func (f *FS) OpenFile(ctx context.Context, name string, flag int, _ os.FileMode) (webdav.File, error) {
	p := clean(name)
	writable := flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0

	meta, err := f.op.Stat(ctx, p)
	switch {
	case err == nil:
		if flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0 {
			return nil, pathError("open", name, stowdav.ErrAlreadyExists)
		}
		if meta.IsDir() {
			if flag&(os.O_WRONLY|os.O_APPEND|os.O_TRUNC) != 0 {
				return nil, pathError("open", name, fmt.Errorf("%w: is a directory", stowdav.ErrInvalidInput))
			}
			return newDirFile(ctx, f.op, p, meta), nil
		}
		if !writable {
			return newReadFile(ctx, f.op, p, meta), nil
		}
	case errors.Is(err, stowdav.ErrNotFound):
		if flag&os.O_CREATE == 0 {
			return nil, pathError("open", name, err)
		}
		if err := f.checkParent(ctx, p); err != nil {
			return nil, pathError("open", name, err)
		}
		meta = stowdav.Metadata{Path: p, Mode: stowdav.ModeFile}
	default:
		return nil, pathError("open", name, err)
	}

	if flag&os.O_APPEND != 0 && !f.op.Info().Append {
		return nil, pathError("open", name, fmt.Errorf("append: %w", stowdav.ErrUnsupported))
	}

	return newWriteFile(ctx, f.op, p, flag, meta, err != nil), nil
}

// RemoveAll deletes name and, for directories, everything below it.
// Missing paths are not an error. The root cannot be removed.
func (f *FS) RemoveAll(ctx context.Context, name string) error {
	p := clean(name)
	if p == "" {
		return pathError("remove", name, fmt.Errorf("%w: cannot remove root", stowdav.ErrPermissionDenied))
	}

	meta, err := f.op.Stat(ctx, p)
	if errors.Is(err, stowdav.ErrNotFound) {
		return nil
	}
	if err != nil {
		return pathError("remove", name, err)
	}

	if !meta.IsDir() {
		if err := f.op.Delete(ctx, p); err != nil {
			return pathError("remove", name, err)
		}
		return nil
	}

	if err := f.removeTree(ctx, p); err != nil {
		return pathError("remove", name, err)
	}
	return nil
}

// removeTree deletes the children of dir in parallel, then dir itself.
func (f *FS) removeTree(ctx context.Context, dir string) error {
	entries, err := f.op.List(ctx, dir)
	if err != nil && !errors.Is(err, stowdav.ErrNotFound) {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.removeConcurrency)

	for _, e := range entries {
		child := strings.TrimSuffix(e.Path, "/")
		if e.Metadata.IsDir() {
			// Subtrees run inline to keep the total number of goroutines
			// bounded by the limit of each level.
			if err := f.removeTree(gctx, child); err != nil {
				_ = g.Wait()
				return err
			}
			continue
		}
		g.Go(func() error {
			return f.op.Delete(gctx, child)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return f.op.Delete(ctx, dir)
}

// Rename always fails with ErrUnsupported; see CanRename.
func (f *FS) Rename(_ context.Context, oldName, newName string) error {
	return &os.LinkError{Op: "rename", Old: oldName, New: newName, Err: stowdav.ErrUnsupported}
}

func (f *FS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	p := clean(name)

	meta, err := f.op.Stat(ctx, p)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return newFileInfo(p, meta), nil
}

// checkParent fails with ErrNotFound when the parent of p does not exist or
// is not a directory.
func (f *FS) checkParent(ctx context.Context, p string) error {
	parent := path.Dir(p)
	if parent == "." {
		return nil
	}

	meta, err := f.op.Stat(ctx, parent)
	if err != nil {
		return err
	}
	if !meta.IsDir() {
		return fmt.Errorf("parent %s: %w: not a directory", parent, stowdav.ErrNotFound)
	}
	return nil
}

func clean(name string) string {
	return stowdav.CleanPath(path.Clean("/" + name))
}

// pathError converts an Operator error into the form the webdav handler
// inspects. The handler relies on os.IsNotExist and friends, which only look
// through *fs.PathError, so the kind becomes the PathError's Err and the
// backend error is logged.
func pathError(op, name string, err error) error {
	var kind error
	switch {
	case errors.Is(err, stowdav.ErrNotFound):
		kind = fs.ErrNotExist
	case errors.Is(err, stowdav.ErrAlreadyExists):
		kind = fs.ErrExist
	case errors.Is(err, stowdav.ErrPermissionDenied):
		kind = fs.ErrPermission
	default:
		return &fs.PathError{Op: op, Path: name, Err: err}
	}

	slog.Debug("davfs: backend error", "op", op, "path", name, "err", err)
	return &fs.PathError{Op: op, Path: name, Err: kind}
}

// CanRename reports whether Rename is supported. The gateway answers MOVE
// with 501 when it is not.
func (f *FS) CanRename() bool {
	return false
}
