// Package s3store implements stowdav.Accessor on Amazon S3 and S3-compatible
// services through aws-sdk-go-v2.
//
// Directories are represented by zero-byte "dir/" marker keys, the convention
// used by the S3 console. Append is not offered.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sagarc03/stowdav"
)

// API is the subset of *s3.Client the store uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config configures an S3 client.
type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint (MinIO, LocalStack). Setting it
	// forces path-style addressing.
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Prefix       string
	UsePathStyle bool
	HTTPClient   *http.Client
}

// Store implements stowdav.Accessor for one bucket.
type Store struct {
	client API
	bucket string
	prefix string
}

// New loads the AWS configuration and returns a Store. Without static keys
// the default credential chain is used.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("new s3 store: %w: bucket is required", stowdav.ErrInvalidInput)
	}

	var opts []func(*awsConfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsConfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, awsConfig.WithHTTPClient(cfg.HTTPClient))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new s3 store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient returns a Store using an existing client.
func NewWithClient(client API, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: stowdav.CleanPath(prefix),
	}
}

func (s *Store) Info() stowdav.Capability {
	return stowdav.Capability{
		Name:      "s3",
		Read:      true,
		Write:     true,
		Append:    false,
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
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(p),
		ContentLength: aws.Int64(int64(len(p))),
	}
	if op.ContentType != "" {
		in.ContentType = aws.String(op.ContentType)
	}
	if op.ContentDisposition != "" {
		in.ContentDisposition = aws.String(op.ContentDisposition)
	}

	_, err := s.client.PutObject(ctx, in)
	return err
}

func (s *Store) Read(ctx context.Context, name string, op stowdav.OpRead) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	}
	if op.Offset > 0 || op.Length > 0 {
		in.Range = aws.String(rangeHeader(op))
	}

	out, err := s.client.GetObject(ctx, in)
	if err != nil {
		err = translate(ctx, err)
		var be *stowdav.BackendError
		if errors.As(err, &be) && be.Status == http.StatusRequestedRangeNotSatisfiable {
			return io.NopCloser(strings.NewReader("")), nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return out.Body, nil
}

// Stat heads the object first and falls back to probing for keys below
// name + "/".
func (s *Store) Stat(ctx context.Context, name string) (stowdav.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return stowdav.Metadata{}, err
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return stowdav.Metadata{
			Path:         name,
			Mode:         stowdav.ModeFile,
			Size:         aws.ToInt64(head.ContentLength),
			ETag:         strings.Trim(aws.ToString(head.ETag), `"`),
			ContentType:  aws.ToString(head.ContentType),
			LastModified: aws.ToTime(head.LastModified),
		}, nil
	}

	err = translate(ctx, err)
	if !errors.Is(err, stowdav.ErrNotFound) {
		return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", name, err)
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.key(name) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", name, translate(ctx, err))
	}

	if len(out.Contents) == 0 && len(out.CommonPrefixes) == 0 {
		return stowdav.Metadata{}, fmt.Errorf("stat %s: %w", name, stowdav.ErrNotFound)
	}

	return stowdav.Metadata{Path: name + "/", Mode: stowdav.ModeDir}, nil
}

func (s *Store) List(ctx context.Context, name string) ([]stowdav.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := s.key(name)
	if prefix != "" {
		prefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var entries []stowdav.Entry
	found := false

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", name, translate(ctx, err))
		}

		for _, cp := range page.CommonPrefixes {
			found = true
			p := s.rel(aws.ToString(cp.Prefix))
			entries = append(entries, stowdav.Entry{
				Path:     p,
				Metadata: stowdav.Metadata{Path: p, Mode: stowdav.ModeDir},
			})
		}

		for _, obj := range page.Contents {
			found = true
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			p := s.rel(key)
			entries = append(entries, stowdav.Entry{
				Path: p,
				Metadata: stowdav.Metadata{
					Path:         p,
					Mode:         stowdav.ModeFile,
					Size:         aws.ToInt64(obj.Size),
					ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
					LastModified: aws.ToTime(obj.LastModified),
				},
			})
		}
	}

	if name != "" && !found {
		return nil, fmt.Errorf("list %s: %w", name, stowdav.ErrNotFound)
	}

	return entries, nil
}

// Delete removes the object at name, or its directory marker when name is
// a directory.
func (s *Store) Delete(ctx context.Context, name string) error {
	meta, err := s.Stat(ctx, name)
	if err != nil {
		return err
	}

	key := s.key(name)
	if meta.IsDir() {
		key += "/"
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
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

func rangeHeader(op stowdav.OpRead) string {
	if op.Length > 0 {
		return fmt.Sprintf("bytes=%d-%d", op.Offset, op.Offset+op.Length-1)
	}
	return fmt.Sprintf("bytes=%d-", op.Offset)
}
