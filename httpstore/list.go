package httpstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sagarc03/stowdav"
)

// listItem mirrors one object in the server's list response.
type listItem struct {
	Path          string    `json:"path"`
	ContentType   string    `json:"content_type"`
	ETag          string    `json:"etag"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type listResult struct {
	Items      []listItem `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func (i listItem) metadata(path string) stowdav.Metadata {
	return stowdav.Metadata{
		Path:         path,
		Mode:         stowdav.ModeFile,
		Size:         i.FileSizeBytes,
		ETag:         i.ETag,
		ContentType:  i.ContentType,
		LastModified: i.UpdatedAt,
	}
}

// list pages through every object whose key starts with prefix and calls fn
// for each one. Returning false from fn stops the iteration.
func (b *Backend) list(ctx context.Context, prefix string, fn func(listItem) bool) error {
	cursor := ""

	for {
		page, err := b.listPage(ctx, prefix, cursor)
		if err != nil {
			return err
		}

		for _, item := range page.Items {
			if !fn(item) {
				return nil
			}
		}

		if page.NextCursor == "" || page.NextCursor == cursor {
			return nil
		}
		cursor = page.NextCursor
	}
}

func (b *Backend) listPage(ctx context.Context, prefix, cursor string) (listResult, error) {
	req, err := b.newRequest(ctx, http.MethodGet, "", nil)
	if err != nil {
		return listResult{}, err
	}

	query := req.URL.Query()
	if prefix != "" {
		query.Set("prefix", prefix)
	}
	query.Set("limit", strconv.Itoa(b.listLimit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	req.URL.RawQuery = query.Encode()

	resp, err := b.send(req)
	if err != nil {
		return listResult{}, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return listResult{}, parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return listResult{}, fmt.Errorf("%w: read list response: %w", stowdav.ErrTransportFailed, err)
	}

	var result listResult
	if err := json.Unmarshal(body, &result); err != nil {
		return listResult{}, fmt.Errorf("%w: parse list response: %w", stowdav.ErrUnexpected, err)
	}

	return result, nil
}
