package davfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"golang.org/x/net/webdav"

	"github.com/sagarc03/stowdav"
)

var (
	errIsDir     = errors.New("is a directory")
	errNotDir    = errors.New("not a directory")
	errReadOnly  = errors.New("file not open for writing")
	errWriteOnly = errors.New("file not open for reading")
)

// readFile streams a file's content. The first Read after open or Seek
// issues a ranged read from the current offset.
type readFile struct {
	ctx  context.Context
	op   *stowdav.Operator
	path string
	meta stowdav.Metadata

	off    int64
	rc     io.ReadCloser
	closed bool
}

var _ webdav.File = (*readFile)(nil)

func newReadFile(ctx context.Context, op *stowdav.Operator, p string, meta stowdav.Metadata) *readFile {
	return &readFile{ctx: ctx, op: op, path: p, meta: meta}
}

func (f *readFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if f.off >= f.meta.Size {
		return 0, io.EOF
	}

	if f.rc == nil {
		rc, err := f.op.Reader(f.ctx, f.path, stowdav.OpRead{Offset: f.off})
		if err != nil {
			return 0, pathError("read", f.path, err)
		}
		f.rc = rc
	}

	n, err := f.rc.Read(p)
	f.off += int64(n)
	return n, err
}

func (f *readFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.off + offset
	case io.SeekEnd:
		abs = f.meta.Size + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}

	if abs != f.off {
		f.dropStream()
		f.off = abs
	}
	return abs, nil
}

func (f *readFile) Readdir(int) ([]fs.FileInfo, error) {
	return nil, &fs.PathError{Op: "readdir", Path: f.path, Err: errNotDir}
}

func (f *readFile) Stat() (fs.FileInfo, error) {
	return newFileInfo(f.path, f.meta), nil
}

func (f *readFile) Write([]byte) (int, error) {
	return 0, &fs.PathError{Op: "write", Path: f.path, Err: errReadOnly}
}

func (f *readFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.dropStream()
}

func (f *readFile) dropStream() error {
	if f.rc == nil {
		return nil
	}
	err := f.rc.Close()
	f.rc = nil
	return err
}

// writeFile collects the body of one upload. Close sends it through a
// single Writer: a full Write, or an Append when opened with O_APPEND.
type writeFile struct {
	ctx  context.Context
	op   *stowdav.Operator
	path string
	meta stowdav.Metadata
	flag int

	buf     bytes.Buffer
	created bool
	dirty   bool
	closed  bool
}

var _ webdav.File = (*writeFile)(nil)

func newWriteFile(ctx context.Context, op *stowdav.Operator, p string, flag int, meta stowdav.Metadata, created bool) *writeFile {
	return &writeFile{ctx: ctx, op: op, path: p, meta: meta, flag: flag, created: created}
}

func (f *writeFile) appending() bool {
	return f.flag&os.O_APPEND != 0
}

func (f *writeFile) replacing() bool {
	return f.created || f.flag&os.O_TRUNC != 0
}

func (f *writeFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.replacing() && !f.appending() {
		return 0, &fs.PathError{Op: "write", Path: f.path, Err: fmt.Errorf("in-place update: %w", stowdav.ErrUnsupported)}
	}

	f.dirty = true
	return f.buf.Write(p)
}

func (f *writeFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: f.path, Err: errWriteOnly}
}

// Seek only reports positions; the buffer is always written sequentially.
func (f *writeFile) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && (whence == io.SeekCurrent || whence == io.SeekEnd) {
		return int64(f.buf.Len()), nil
	}
	return 0, &fs.PathError{Op: "seek", Path: f.path, Err: stowdav.ErrUnsupported}
}

func (f *writeFile) Readdir(int) ([]fs.FileInfo, error) {
	return nil, &fs.PathError{Op: "readdir", Path: f.path, Err: errNotDir}
}

func (f *writeFile) Stat() (fs.FileInfo, error) {
	meta := f.meta
	meta.ETag = ""
	meta.LastModified = time.Now()
	switch {
	case f.appending():
		meta.Size += int64(f.buf.Len())
	case f.replacing():
		meta.Size = int64(f.buf.Len())
	}
	return newFileInfo(f.path, meta), nil
}

func (f *writeFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	switch {
	case f.appending():
		if !f.dirty {
			return nil
		}
		if err := f.op.Append(f.ctx, f.path, f.buf.Bytes()); err != nil {
			return pathError("close", f.path, err)
		}
	case f.replacing():
		op := stowdav.OpWrite{ContentType: contentTypeFor(f.path)}.WithContentLength(int64(f.buf.Len()))
		if err := f.op.Write(f.ctx, f.path, f.buf.Bytes(), op); err != nil {
			return pathError("close", f.path, err)
		}
	}
	return nil
}

// dirFile lists a directory. Entries are fetched on the first Readdir.
type dirFile struct {
	ctx  context.Context
	op   *stowdav.Operator
	path string
	meta stowdav.Metadata

	entries []fs.FileInfo
	loaded  bool
	pos     int
}

var _ webdav.File = (*dirFile)(nil)

func newDirFile(ctx context.Context, op *stowdav.Operator, p string, meta stowdav.Metadata) *dirFile {
	return &dirFile{ctx: ctx, op: op, path: p, meta: meta}
}

func (d *dirFile) Readdir(count int) ([]fs.FileInfo, error) {
	if !d.loaded {
		entries, err := d.op.List(d.ctx, d.path)
		if err != nil {
			return nil, pathError("readdir", d.path, err)
		}
		d.entries = make([]fs.FileInfo, 0, len(entries))
		for _, e := range entries {
			d.entries = append(d.entries, newFileInfo(e.Path, e.Metadata))
		}
		d.loaded = true
	}

	rest := d.entries[d.pos:]
	if count <= 0 {
		d.pos = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}

	n := min(count, len(rest))
	d.pos += n
	return rest[:n], nil
}

func (d *dirFile) Stat() (fs.FileInfo, error) {
	return newFileInfo(d.path, d.meta), nil
}

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: errIsDir}
}

func (d *dirFile) Write([]byte) (int, error) {
	return 0, &fs.PathError{Op: "write", Path: d.path, Err: errIsDir}
}

func (d *dirFile) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		d.pos = 0
		return 0, nil
	}
	return 0, &fs.PathError{Op: "seek", Path: d.path, Err: errIsDir}
}

func (d *dirFile) Close() error {
	return nil
}
