// Package miniostore implements stowdav.Accessor with the MinIO client. It
// works against MinIO and other S3-compatible servers (Ceph, Garage,
// SeaweedFS) without the AWS SDK.
package miniostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sagarc03/stowdav"
)

// Config configures a MinIO client.
type Config struct {
	// Endpoint is host:port, without scheme.
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string
	Bucket    string
	Prefix    string
}

// Store implements stowdav.Accessor for one bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a MinIO client from cfg and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("new minio store: %w: endpoint and bucket are required", stowdav.ErrInvalidInput)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("new minio store: %w", err)
	}

	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient returns a Store using an existing client. prefix is
// prepended to every key.
func NewWithClient(client *minio.Client, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: stowdav.CleanPath(prefix),
	}
}

func (s *Store) Info() stowdav.Capability {
	return stowdav.Capability{
		Name:      "minio",
		Read:      true,
		Write:     true,
		List:      true,
		Stat:      true,
		Delete:    true,
		CreateDir: true,
	}
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	if name == "" {
		return s.prefix
	}
	return path.Join(s.prefix, name)
}

func (s *Store) rel(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func (s *Store) Writer(ctx context.Context, name string, op stowdav.OpWrite) (stowdav.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &writer{SingleWrite: stowdav.NewSingleWrite(name, op), s: s}, nil
}

func (s *Store) put(ctx context.Context, key string, p []byte, op stowdav.OpWrite) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(p), int64(len(p)), minio.PutObjectOptions{
		ContentType:        op.ContentType,
		ContentDisposition: op.ContentDisposition,
	})
	return err
}

func (s *Store) Read(ctx context.Context, name string, op stowdav.OpRead) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := minio.GetObjectOptions{}
	if op.Offset > 0 || op.Length > 0 {
		end := int64(0)
		if op.Length > 0 {
			end = op.Offset + op.Length - 1
		}
		if err := opts.SetRange(op.Offset, end); err != nil {
			return nil, fmt.Errorf("read %s: %w: %w", name, stowdav.ErrInvalidInput, err)
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, translate(ctx, err))
	}

	// GetObject is lazy; Stat issues the request so errors surface here.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		err = translate(ctx, err)
		var be *stowdav.BackendError
		if errors.As(err, &be) && be.Status == http.StatusRequestedRangeNotSatisfiable {
			return io.NopCloser(strings.NewReader("")), nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return obj, nil
}

// Stat reports name as a file when an object exists at its key, and as a
// directory when any key exists below name + "/".
func (s *Store) Stat(ctx context.Context, name string) (stowdav.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return stowdav.Metadata{}, err
	}

	info, err := s.client.StatObject(ctx, s.bucket, s.key(name), minio.StatObjectOptions{})
	if err == nil {
		return stowdav.Metadata{
			Path:         name,
			Mode:         stowdav.ModeFile,
			Size:         info.Size,
			ETag:         strings.Trim(info.ETag, `"`),
			ContentType:  info.ContentType,
			LastModified: info.LastModified,
		}, nil
	}

	err = translate(ctx, err)
	if !errors.Is(err, stowdav.ErrNotFound) {
		return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", name, err)
	}

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(lctx, s.bucket, minio.ListObjectsOptions{
		Prefix:  s.key(name) + "/",
		MaxKeys: 1,
	}) {
		if obj.Err != nil {
			return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", name, translate(ctx, obj.Err))
		}
		return stowdav.Metadata{Path: name + "/", Mode: stowdav.ModeDir}, nil
	}

	return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", name, stowdav.ErrNotFound)
}

func (s *Store) List(ctx context.Context, name string) ([]stowdav.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := s.key(name)
	if prefix != "" {
		prefix += "/"
	}

	var entries []stowdav.Entry
	found := false

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", name, translate(ctx, obj.Err))
		}
		found = true
		if obj.Key == prefix {
			continue
		}

		p := s.rel(obj.Key)
		if strings.HasSuffix(obj.Key, "/") {
			entries = append(entries, stowdav.Entry{
				Path:     p,
				Metadata: stowdav.Metadata{Path: p, Mode: stowdav.ModeDir},
			})
			continue
		}

		entries = append(entries, stowdav.Entry{
			Path: p,
			Metadata: stowdav.Metadata{
				Path:         p,
				Mode:         stowdav.ModeFile,
				Size:         obj.Size,
				ETag:         strings.Trim(obj.ETag, `"`),
				ContentType:  obj.ContentType,
				LastModified: obj.LastModified,
			},
		})
	}

	if name != "" && !found {
		return nil, fmt.Errorf("list %s: %w", name, stowdav.ErrNotFound)
	}

	return entries, nil
}

// Delete removes the object at name, or its directory marker.
func (s *Store) Delete(ctx context.Context, name string) error {
	meta, err := s.Stat(ctx, name)
	if err != nil {
		return err
	}

	key := s.key(name)
	if meta.IsDir() {
		key += "/"
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", name, translate(ctx, err))
	}

	return nil
}

// CreateDir writes the "name/" marker object.
func (s *Store) CreateDir(ctx context.Context, name string) error {
	if _, err := s.Stat(ctx, name); err == nil {
		return fmt.Errorf("create dir %s: %w", name, stowdav.ErrAlreadyExists)
	} else if !errors.Is(err, stowdav.ErrNotFound) {
		return err
	}

	if err := s.put(ctx, s.key(name)+"/", nil, stowdav.OpWrite{}); err != nil {
		return fmt.Errorf("create dir %s: %w", name, translate(ctx, err))
	}

	return nil
}
