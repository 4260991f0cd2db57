package httpstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/sagarc03/stowdav"
)

// Writer uploads one object with a single PUT. It accepts exactly one Write;
// Append is not offered by this backend.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	stowdav.SingleWrite
	b *Backend
}

func newWriter(b *Backend, path string, op stowdav.OpWrite) *Writer {
	return &Writer{SingleWrite: stowdav.NewSingleWrite(path, op), b: b}
}

// Write uploads p. The response status decides the outcome: 200 and 201 are
// success, anything else is returned as a *stowdav.BackendError.
func (w *Writer) Write(ctx context.Context, p []byte) error {
	if err := w.Begin(p); err != nil {
		return err
	}
	path, op := w.Path(), w.Op()

	req, err := w.b.newRequest(ctx, http.MethodPut, w.b.key(path), bytes.NewReader(p))
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	req.ContentLength = int64(len(p))
	if len(p) == 0 {
		req.Body = http.NoBody
	}

	contentType := op.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if op.ContentDisposition != "" {
		req.Header.Set("Content-Disposition", op.ContentDisposition)
	}

	resp, err := w.b.send(req)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	default:
		return fmt.Errorf("write %s: %w", path, parseError(resp))
	}
}
