package miniostore

import (
	"context"
	"fmt"

	"github.com/sagarc03/stowdav"
)

// writer uploads one object with a single PutObject call through minio-go.
type writer struct {
	stowdav.SingleWrite
	s *Store
}

func (w *writer) Write(ctx context.Context, p []byte) error {
	if err := w.Begin(p); err != nil {
		return err
	}

	if err := w.s.put(ctx, w.s.key(w.Path()), p, w.Op()); err != nil {
		return fmt.Errorf("write %s: %w", w.Path(), translate(ctx, err))
	}

	return nil
}
