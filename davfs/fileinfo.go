package davfs

import (
	"context"
	"io/fs"
	"mime"
	"path"
	"strings"
	"time"

	"golang.org/x/net/webdav"

	"github.com/sagarc03/stowdav"
)

// fileInfo is an fs.FileInfo for one entry. It also implements
// webdav.ETager and webdav.ContentTyper when the backend reported values.
type fileInfo struct {
	name string
	meta stowdav.Metadata
}

var (
	_ webdav.ETager       = fileInfo{}
	_ webdav.ContentTyper = fileInfo{}
)

func newFileInfo(p string, meta stowdav.Metadata) fileInfo {
	name := path.Base(strings.TrimSuffix(p, "/"))
	if p == "" {
		name = "/"
	}
	return fileInfo{name: name, meta: meta}
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.meta.Size }
func (fi fileInfo) ModTime() time.Time { return fi.meta.LastModified }
func (fi fileInfo) IsDir() bool        { return fi.meta.IsDir() }
func (fi fileInfo) Sys() any           { return nil }

func (fi fileInfo) Mode() fs.FileMode {
	if fi.meta.IsDir() {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

func (fi fileInfo) ETag(_ context.Context) (string, error) {
	if fi.meta.ETag == "" {
		return "", webdav.ErrNotImplemented
	}
	return `"` + fi.meta.ETag + `"`, nil
}

func (fi fileInfo) ContentType(_ context.Context) (string, error) {
	if fi.meta.IsDir() || fi.meta.ContentType == "" {
		return "", webdav.ErrNotImplemented
	}
	return fi.meta.ContentType, nil
}

func contentTypeFor(p string) string {
	return mime.TypeByExtension(path.Ext(p))
}
