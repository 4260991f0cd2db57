// Package filesystem implements stowdav.Accessor on a local directory.
// All access goes through an os.Root, so paths cannot escape it. Writes are
// atomic (temp file plus rename), etags are SHA256 digests, and content
// types are derived from file extensions. Unlike the object stores, this
// backend supports append.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sagarc03/stowdav"
)

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// New opens dir as the storage root, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("new filesystem store: %w", err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("new filesystem store: %w", err)
	}

	return NewFileStorage(root), nil
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Close releases the underlying root.
func (s *Store) Close() error {
	return s.root.Close()
}

func (s *Store) Info() stowdav.Capability {
	return stowdav.Capability{
		Name:      "fs",
		Read:      true,
		Write:     true,
		Append:    true,
		List:      true,
		Stat:      true,
		Delete:    true,
		CreateDir: true,
	}
}

func (s *Store) Writer(ctx context.Context, path string, op stowdav.OpWrite) (stowdav.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &writer{s: s, path: path, op: op}, nil
}

// Read opens a file and positions it at op.Offset. Reading past the end
// yields no data.
func (s *Store) Read(ctx context.Context, path string, op stowdav.OpRead) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, translate(err))
	}

	info, err := f.Stat()
	if err != nil {
		closeFile(f, path)
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if info.IsDir() {
		closeFile(f, path)
		return nil, fmt.Errorf("read %s: %w: is a directory", path, stowdav.ErrInvalidInput)
	}

	if _, err := f.Seek(op.Offset, io.SeekStart); err != nil {
		closeFile(f, path)
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var r io.Reader = f
	if op.Length > 0 {
		r = io.LimitReader(f, op.Length)
	}

	return &fileReader{ctxReader: ctxReader{ctx: ctx, r: r}, f: f}, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

type fileReader struct {
	ctxReader
	f *os.File
}

func (r *fileReader) Close() error {
	return r.f.Close()
}

func (s *Store) Stat(ctx context.Context, path string) (stowdav.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return stowdav.Metadata{}, err
	}

	info, err := s.root.Stat(path)
	if err != nil {
		return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", path, translate(err))
	}

	if info.IsDir() {
		return stowdav.Metadata{Path: path + "/", Mode: stowdav.ModeDir, LastModified: info.ModTime()}, nil
	}

	etag, err := s.hashFile(path)
	if err != nil {
		return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", path, err)
	}

	meta := fileMetadata(path, info)
	meta.ETag = etag
	return meta, nil
}

// List returns the direct children of path. Etags are left empty; computing
// them would mean reading every file.
func (s *Store) List(ctx context.Context, path string) ([]stowdav.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := path
	if dir == "" {
		dir = "."
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, translate(err))
	}

	entries := make([]stowdav.Entry, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isTempName(entry.Name()) {
			continue
		}

		entryPath := entry.Name()
		if path != "" {
			entryPath = path + "/" + entry.Name()
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}

		if entry.IsDir() {
			entryPath += "/"
			entries = append(entries, stowdav.Entry{
				Path:     entryPath,
				Metadata: stowdav.Metadata{Path: entryPath, Mode: stowdav.ModeDir, LastModified: info.ModTime()},
			})
			continue
		}

		entries = append(entries, stowdav.Entry{Path: entryPath, Metadata: fileMetadata(entryPath, info)})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

// Delete removes a file or an empty directory.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, translate(err))
	}
	return nil
}

// CreateDir creates path and any missing parents.
func (s *Store) CreateDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.root.Stat(path); err == nil {
		return fmt.Errorf("create dir %s: %w", path, stowdav.ErrAlreadyExists)
	}

	if err := s.root.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", path, translate(err))
	}
	return nil
}

// writeAtomic writes content to path using a temp file and rename, creating
// intermediate directories as needed. It returns the SHA256-based etag.
func (s *Store) writeAtomic(ctx context.Context, path string, content io.Reader) (string, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return "", fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	if _, err := io.Copy(w, &ctxReader{ctx: ctx, r: content}); err != nil {
		return "", fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return "", fmt.Errorf("could not sync written file: %w", err)
	}

	if err := s.mkdirParent(path); err != nil {
		return "", err
	}

	if renameErr := s.root.Rename(tmpFile, path); renameErr != nil {
		return "", fmt.Errorf("failed to rename file: %w", translate(renameErr))
	}

	success = true
	return hex.EncodeToString(h.Sum(nil)), nil
}

// appendFile appends p to path, creating the file if needed.
func (s *Store) appendFile(ctx context.Context, path string, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.mkdirParent(path); err != nil {
		return err
	}

	f, err := s.root.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("could not open file for append: %w", translate(err))
	}

	_, writeErr := f.Write(p)
	syncErr := f.Sync()
	closeErr := f.Close()

	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		return fmt.Errorf("could not append to file: %w", err)
	}
	return nil
}

func (s *Store) mkdirParent(path string) error {
	destDir := filepath.Dir(path)
	if destDir == "." {
		return nil
	}
	if err := s.root.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("could not create intermediate directories: %w", translate(err))
	}
	return nil
}

func (s *Store) hashFile(path string) (string, error) {
	f, err := s.root.Open(path)
	if err != nil {
		return "", translate(err)
	}
	defer closeFile(f, path)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileMetadata(path string, info fs.FileInfo) stowdav.Metadata {
	return stowdav.Metadata{
		Path:         path,
		Mode:         stowdav.ModeFile,
		Size:         info.Size(),
		ContentType:  detectContentType(path),
		LastModified: info.ModTime(),
	}
}

// translate maps os errors onto stowdav kinds, keeping the original error.
func translate(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", stowdav.ErrNotFound, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %w", stowdav.ErrAlreadyExists, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", stowdav.ErrPermissionDenied, err)
	}
	return err
}

func closeFile(f *os.File, path string) {
	if err := f.Close(); err != nil {
		slog.Warn("failed to close file", "path", path, "err", err)
	}
}

func detectContentType(path string) string {
	ext := filepath.Ext(path)
	contentType := mime.TypeByExtension(ext)

	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}

func isTempName(name string) bool {
	id, ok := strings.CutPrefix(name, ".t")
	return ok && uuid.Validate(id) == nil
}
