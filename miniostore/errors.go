package miniostore

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"

	"github.com/sagarc03/stowdav"
)

// translate maps a minio-go error onto the stowdav error kinds. Errors that
// carry no HTTP status are treated as transport failures.
func translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 {
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return fmt.Errorf("%w: %w", stowdav.ErrNotFound, err)
		}
		return fmt.Errorf("%w: %w", stowdav.ErrTransportFailed, err)
	}

	be := stowdav.NewBackendError(resp.StatusCode, nil)
	be.Code = resp.Code
	be.Message = resp.Message
	be.RequestID = resp.RequestID
	be.SynthesizeBody()
	return be
}
