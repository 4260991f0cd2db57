// Package memstore provides an in-memory storage backend. It backs the
// "memory" backend type and is the reference accessor in tests.
package memstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sagarc03/stowdav"
)

type object struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
}

// Store keeps objects in a map guarded by a RWMutex. Directories exist
// either explicitly (CreateDir) or implicitly as a prefix of an object path.
type Store struct {
	mu    sync.RWMutex
	files map[string]*object
	dirs  map[string]time.Time
	now   func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		files: make(map[string]*object),
		dirs:  make(map[string]time.Time),
		now:   time.Now,
	}
}

func (s *Store) Info() stowdav.Capability {
	return stowdav.Capability{
		Name:      "memory",
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
	return &writer{store: s, path: path, op: op}, nil
}

func (s *Store) Read(ctx context.Context, path string, op stowdav.OpRead) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	obj, ok := s.files[path]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, stowdav.ErrNotFound)
	}

	size := int64(len(obj.data))
	start := min(op.Offset, size)
	end := size
	if op.Length > 0 {
		end = min(start+op.Length, size)
	}

	// obj.data is never mutated in place, so the slice is safe to hand out.
	return io.NopCloser(bytes.NewReader(obj.data[start:end])), nil
}

func (s *Store) Stat(ctx context.Context, path string) (stowdav.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return stowdav.Metadata{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if obj, ok := s.files[path]; ok {
		return fileMetadata(path, obj), nil
	}

	if modified, ok := s.isDir(path); ok {
		return stowdav.Metadata{Path: path + "/", Mode: stowdav.ModeDir, LastModified: modified}, nil
	}

	return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", path, stowdav.ErrNotFound)
}

func (s *Store) List(ctx context.Context, path string) ([]stowdav.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if path != "" {
		if _, ok := s.isDir(path); !ok {
			return nil, fmt.Errorf("list %s: %w", path, stowdav.ErrNotFound)
		}
	}

	prefix := ""
	if path != "" {
		prefix = path + "/"
	}

	seen := make(map[string]stowdav.Entry)

	for p, obj := range s.files {
		name, isDir, ok := child(prefix, p)
		if !ok {
			continue
		}
		if isDir {
			seen[name+"/"] = dirEntry(prefix + name)
			continue
		}
		seen[name] = stowdav.Entry{Path: p, Metadata: fileMetadata(p, obj)}
	}

	for p := range s.dirs {
		name, _, ok := child(prefix, p)
		if !ok {
			continue
		}
		seen[name+"/"] = dirEntry(prefix + name)
	}

	entries := make([]stowdav.Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[path]; ok {
		delete(s.files, path)
		return nil
	}

	if _, ok := s.dirs[path]; ok {
		delete(s.dirs, path)
		return nil
	}

	return fmt.Errorf("delete %s: %w", path, stowdav.ErrNotFound)
}

func (s *Store) CreateDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[path]; ok {
		return fmt.Errorf("create dir %s: %w", path, stowdav.ErrAlreadyExists)
	}
	if _, ok := s.isDir(path); ok {
		return fmt.Errorf("create dir %s: %w", path, stowdav.ErrAlreadyExists)
	}

	s.dirs[path] = s.now()
	return nil
}

// isDir must be called with s.mu held.
func (s *Store) isDir(path string) (time.Time, bool) {
	if modified, ok := s.dirs[path]; ok {
		return modified, true
	}

	prefix := path + "/"
	for p, obj := range s.files {
		if strings.HasPrefix(p, prefix) {
			return obj.modified, true
		}
	}
	for p, modified := range s.dirs {
		if strings.HasPrefix(p, prefix) {
			return modified, true
		}
	}

	return time.Time{}, false
}

func (s *Store) put(path string, data []byte, contentType string, appendData bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appendData {
		if prev, ok := s.files[path]; ok {
			merged := make([]byte, 0, len(prev.data)+len(data))
			merged = append(merged, prev.data...)
			data = append(merged, data...)
			if contentType == "" {
				contentType = prev.contentType
			}
		}
	}

	sum := sha256.Sum256(data)
	s.files[path] = &object{
		data:        data,
		contentType: contentType,
		etag:        hex.EncodeToString(sum[:]),
		modified:    s.now(),
	}
}

// child reports the first path segment of p below prefix and whether more
// segments follow it.
func child(prefix, p string) (name string, isDir bool, ok bool) {
	if !strings.HasPrefix(p, prefix) || p == prefix {
		return "", false, false
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" {
		return "", false, false
	}
	name, _, isDir = strings.Cut(rest, "/")
	return name, isDir, true
}

func fileMetadata(path string, obj *object) stowdav.Metadata {
	return stowdav.Metadata{
		Path:         path,
		Mode:         stowdav.ModeFile,
		Size:         int64(len(obj.data)),
		ETag:         obj.etag,
		ContentType:  obj.contentType,
		LastModified: obj.modified,
	}
}

func dirEntry(path string) stowdav.Entry {
	return stowdav.Entry{
		Path:     path + "/",
		Metadata: stowdav.Metadata{Path: path + "/", Mode: stowdav.ModeDir},
	}
}
