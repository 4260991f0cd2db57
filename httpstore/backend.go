// Package httpstore talks to stowry-compatible object servers over HTTP.
//
// Objects are uploaded with a single signed PUT, read with ranged GETs and
// discovered through the server's JSON listing endpoint. The backend has no
// append capability.
package httpstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/signing"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultListLimit is the page size requested from the listing endpoint.
	DefaultListLimit = 1000

	// dirMarker is the empty object that keeps an otherwise empty directory
	// visible to listings.
	dirMarker = ".keep"
)

// Config configures a Backend.
type Config struct {
	// Endpoint is the server base URL, e.g. http://localhost:5708.
	Endpoint string
	// Root is an optional key prefix all paths are stored under.
	Root       string
	Signer     signing.Signer
	HTTPClient *http.Client
	ListLimit  int
}

// Backend implements stowdav.Accessor against a stowry-compatible server.
type Backend struct {
	endpoint  *url.URL
	root      string
	signer    signing.Signer
	client    *http.Client
	listLimit int
}

// New validates cfg and returns a Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("new http backend: %w: endpoint is required", stowdav.ErrInvalidInput)
	}

	u, err := url.Parse(strings.TrimSuffix(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("new http backend: %w: %w", stowdav.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("new http backend: %w: unsupported scheme %q", stowdav.ErrInvalidInput, u.Scheme)
	}

	b := &Backend{
		endpoint:  u,
		root:      stowdav.CleanPath(cfg.Root),
		signer:    cfg.Signer,
		client:    cfg.HTTPClient,
		listLimit: cfg.ListLimit,
	}
	if b.signer == nil {
		b.signer = signing.Anonymous{}
	}
	if b.client == nil {
		b.client = &http.Client{Timeout: DefaultTimeout}
	}
	if b.listLimit <= 0 {
		b.listLimit = DefaultListLimit
	}

	return b, nil
}

func (b *Backend) Info() stowdav.Capability {
	return stowdav.Capability{
		Name:      "http",
		Read:      true,
		Write:     true,
		Append:    false,
		List:      true,
		Stat:      true,
		Delete:    true,
		CreateDir: true,
	}
}

// Writer returns a single-shot upload for path.
func (b *Backend) Writer(ctx context.Context, path string, op stowdav.OpWrite) (stowdav.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newWriter(b, path, op), nil
}

func (b *Backend) Read(ctx context.Context, path string, op stowdav.OpRead) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := b.newRequest(ctx, http.MethodGet, b.key(path), nil)
	if err != nil {
		return nil, err
	}
	if op.Offset > 0 || op.Length > 0 {
		req.Header.Set("Range", rangeHeader(op))
	}

	resp, err := b.send(req)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusOK:
		return skipRange(resp.Body, op)
	case http.StatusRequestedRangeNotSatisfiable:
		drain(resp)
		return io.NopCloser(strings.NewReader("")), nil
	default:
		defer drain(resp)
		return nil, fmt.Errorf("read %s: %w", path, parseError(resp))
	}
}

// Stat finds path in the listing. An exact key match is a file; any key
// below path + "/" makes it a directory.
func (b *Backend) Stat(ctx context.Context, path string) (stowdav.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return stowdav.Metadata{}, err
	}

	key := b.key(path)
	var found *stowdav.Metadata

	err := b.list(ctx, key, func(item listItem) bool {
		switch {
		case item.Path == key:
			meta := item.metadata(path)
			found = &meta
			return false
		case found == nil && strings.HasPrefix(item.Path, key+"/"):
			found = &stowdav.Metadata{Path: path + "/", Mode: stowdav.ModeDir, LastModified: item.UpdatedAt}
		}
		return true
	})
	if err != nil {
		return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if found == nil {
		return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", path, stowdav.ErrNotFound)
	}

	return *found, nil
}

func (b *Backend) List(ctx context.Context, path string) ([]stowdav.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := b.key(path)
	if prefix != "" {
		prefix += "/"
	}

	var entries []stowdav.Entry
	dirs := make(map[string]struct{})
	found := false

	err := b.list(ctx, prefix, func(item listItem) bool {
		found = true
		rel := strings.TrimPrefix(item.Path, prefix)
		name, _, isDir := strings.Cut(rel, "/")
		switch {
		case name == "":
		case isDir:
			if _, ok := dirs[name]; !ok {
				dirs[name] = struct{}{}
				p := b.rel(prefix+name) + "/"
				entries = append(entries, stowdav.Entry{
					Path:     p,
					Metadata: stowdav.Metadata{Path: p, Mode: stowdav.ModeDir, LastModified: item.UpdatedAt},
				})
			}
		case name == dirMarker:
		default:
			p := b.rel(item.Path)
			entries = append(entries, stowdav.Entry{Path: p, Metadata: item.metadata(p)})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	if path != "" && !found {
		return nil, fmt.Errorf("list %s: %w", path, stowdav.ErrNotFound)
	}

	return entries, nil
}

// Delete removes the object at path, falling back to the directory marker.
func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.delete(ctx, b.key(path))
	if errors.Is(err, stowdav.ErrNotFound) {
		err = b.delete(ctx, b.key(path+"/"+dirMarker))
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	return nil
}

// CreateDir uploads an empty marker object below path.
func (b *Backend) CreateDir(ctx context.Context, path string) error {
	if _, err := b.Stat(ctx, path); err == nil {
		return fmt.Errorf("create dir %s: %w", path, stowdav.ErrAlreadyExists)
	} else if !errors.Is(err, stowdav.ErrNotFound) {
		return err
	}

	w := newWriter(b, path+"/"+dirMarker, stowdav.OpWrite{ContentType: "application/octet-stream"})
	defer w.Close()

	if err := w.Write(ctx, nil); err != nil {
		return fmt.Errorf("create dir %s: %w", path, err)
	}

	return nil
}

func (b *Backend) delete(ctx context.Context, key string) error {
	req, err := b.newRequest(ctx, http.MethodDelete, key, nil)
	if err != nil {
		return err
	}

	resp, err := b.send(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}

	return parseError(resp)
}

// key maps an accessor path to the server-side object key.
func (b *Backend) key(path string) string {
	switch {
	case b.root == "":
		return path
	case path == "":
		return b.root
	default:
		return b.root + "/" + path
	}
}

// rel maps a server-side key back to an accessor path.
func (b *Backend) rel(key string) string {
	if b.root == "" {
		return key
	}
	return strings.TrimPrefix(key, b.root+"/")
}

// objectURL escapes every key segment so names containing '?', '#' or '%'
// survive the round trip.
func (b *Backend) objectURL(key string) *url.URL {
	if key == "" {
		return b.endpoint.JoinPath("/")
	}

	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return b.endpoint.JoinPath(segments...)
}

func (b *Backend) newRequest(ctx context.Context, method, key string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.objectURL(key).String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// send signs and executes req. Signing and transport failures are wrapped
// with their error kinds; any response is returned for the caller to classify.
func (b *Backend) send(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if err := b.signer.Sign(ctx, req); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, stowdav.ErrSigningFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", stowdav.ErrSigningFailed, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s: %w", stowdav.ErrTransportFailed, req.Method, req.URL.Path, err)
	}

	return resp, nil
}

func rangeHeader(op stowdav.OpRead) string {
	if op.Length > 0 {
		return fmt.Sprintf("bytes=%d-%d", op.Offset, op.Offset+op.Length-1)
	}
	return fmt.Sprintf("bytes=%d-", op.Offset)
}

// skipRange applies op to a full-body response from a server that ignored
// the Range header.
func skipRange(body io.ReadCloser, op stowdav.OpRead) (io.ReadCloser, error) {
	if op.Offset > 0 {
		if _, err := io.CopyN(io.Discard, body, op.Offset); err != nil && !errors.Is(err, io.EOF) {
			_ = body.Close()
			return nil, fmt.Errorf("skip to offset %d: %w", op.Offset, err)
		}
	}

	if op.Length > 0 {
		return struct {
			io.Reader
			io.Closer
		}{io.LimitReader(body, op.Length), body}, nil
	}

	return body, nil
}

// drain consumes and closes the response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
