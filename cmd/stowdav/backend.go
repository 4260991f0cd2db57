package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/config"
	"github.com/sagarc03/stowdav/filesystem"
	"github.com/sagarc03/stowdav/httpstore"
	"github.com/sagarc03/stowdav/memstore"
	"github.com/sagarc03/stowdav/miniostore"
	"github.com/sagarc03/stowdav/s3store"
	"github.com/sagarc03/stowdav/signing"
)

// openOperator builds the accessor selected by cfg.Type and wraps it in an
// Operator holding one reference.
func openOperator(ctx context.Context, cfg config.BackendConfig) (*stowdav.Operator, error) {
	acc, err := newAccessor(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Type, err)
	}

	op, err := stowdav.NewOperator(acc)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Type, err)
	}

	return op, nil
}

func newAccessor(ctx context.Context, cfg config.BackendConfig) (stowdav.Accessor, error) {
	switch cfg.Type {
	case "http":
		signer, err := newSigner(cfg.HTTP)
		if err != nil {
			return nil, err
		}
		return httpstore.New(httpstore.Config{
			Endpoint:   cfg.HTTP.Endpoint,
			Root:       cfg.Prefix,
			Signer:     signer,
			HTTPClient: &http.Client{Timeout: cfg.HTTP.Timeout},
		})
	case "s3":
		return s3store.New(ctx, s3store.Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Prefix:       cfg.Prefix,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	case "minio":
		return miniostore.New(miniostore.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Secure:    cfg.MinIO.Secure,
			Region:    cfg.MinIO.Region,
			Bucket:    cfg.MinIO.Bucket,
			Prefix:    cfg.Prefix,
		})
	case "fs":
		return filesystem.New(filepath.Join(cfg.FS.Path, filepath.FromSlash(stowdav.CleanPath(cfg.Prefix))))
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend type %q", stowdav.ErrInvalidInput, cfg.Type)
	}
}

func newSigner(cfg config.HTTPBackendConfig) (signing.Signer, error) {
	switch cfg.Signer {
	case "", "anonymous":
		return signing.Anonymous{}, nil
	case "stowry":
		return signing.NewStowry(cfg.AccessKey, cfg.SecretKey, cfg.Expires), nil
	case "sigv4":
		return signing.NewSigV4(cfg.AccessKey, cfg.SecretKey, cfg.Region, cfg.Service, cfg.Expires), nil
	default:
		return nil, fmt.Errorf("%w: unknown signer %q", stowdav.ErrInvalidInput, cfg.Signer)
	}
}
