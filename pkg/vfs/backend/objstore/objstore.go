// Package objstore provides an S3-backed backend adapter.
//
// Files map to objects keyed `<prefix><rel>` and directories to zero-byte
// marker objects keyed `<prefix><rel>/`. The adapter is write-through: the
// filesystem mirrors every change here as it happens, and object writes are
// durable as soon as PutObject returns, so Flush has nothing left to do.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// Config holds configuration for the S3 adapter.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to all object keys (e.g., "vfs/").
	// Should end with "/" if non-empty.
	KeyPrefix string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool
}

// Store is an S3-backed implementation of backend.Adapter.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

var (
	_ backend.Adapter        = (*Store)(nil)
	_ backend.WriteThrougher = (*Store)(nil)
)

// New creates an adapter with an existing client.
func New(client *s3.Client, config Config) *Store {
	return &Store{
		client:    client,
		bucket:    config.Bucket,
		keyPrefix: config.KeyPrefix,
	}
}

// NewFromConfig creates an adapter by building an S3 client from config.
// This is the preferred constructor when you don't have an existing client.
func NewFromConfig(ctx context.Context, config Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)

	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}

	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return New(client, config), nil
}

// fileKey returns the object key for a file at rel.
func (s *Store) fileKey(rel string) string {
	return s.keyPrefix + rel
}

// dirKey returns the marker key for a directory at rel.
func (s *Store) dirKey(rel string) string {
	if rel == "" {
		return s.keyPrefix
	}
	return s.keyPrefix + rel + "/"
}

// ============================================================================
// Adapter Operations
// ============================================================================

// ReadDir lists the direct children of the directory at rel using a
// delimiter listing: common prefixes are subdirectories, objects are files.
func (s *Store) ReadDir(ctx context.Context, rel string) ([]backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirPrefix := s.dirKey(rel)

	var entries []backend.Entry

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(dirPrefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fserrors.NewIO(rel, fmt.Errorf("s3 list objects: %w", err))
		}

		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix((*cp.Prefix)[len(dirPrefix):], "/")
			entries = append(entries, backend.Entry{
				Name: name,
				Kind: backend.KindDirectory,
			})
		}

		for _, obj := range page.Contents {
			name := (*obj.Key)[len(dirPrefix):]
			if name == "" {
				// The directory's own marker object.
				continue
			}

			entry := backend.Entry{
				Name: name,
				Kind: backend.KindFile,
			}
			if obj.Size != nil {
				entry.Size = *obj.Size
			}
			if obj.LastModified != nil {
				entry.ModTime = *obj.LastModified
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// ReadFile reads a complete object.
func (s *Store) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(rel)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fserrors.NewNotFound(rel)
		}
		return nil, fserrors.NewIO(rel, fmt.Errorf("s3 get object: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fserrors.NewIO(rel, fmt.Errorf("read s3 object body: %w", err))
	}

	return data, nil
}

// WriteFile writes a complete object.
func (s *Store) WriteFile(ctx context.Context, rel string, data []byte, modTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(rel)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fserrors.NewIO(rel, fmt.Errorf("s3 put object: %w", err))
	}

	return nil
}

// Mkdir writes a zero-byte marker object for the directory.
func (s *Store) Mkdir(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dirKey(rel)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fserrors.NewIO(rel, fmt.Errorf("s3 put object: %w", err))
	}

	return nil
}

// Remove deletes the object(s) at rel: the file object, or the directory
// marker plus any stray descendants.
func (s *Store) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.statFile(ctx, rel); err == nil {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.fileKey(rel)),
		})
		if err != nil {
			return fserrors.NewIO(rel, fmt.Errorf("s3 delete object: %w", err))
		}
		return nil
	}

	return s.deleteByPrefix(ctx, rel, s.dirKey(rel))
}

// Rename moves an object or directory subtree via copy-then-delete;
// S3 has no native rename.
func (s *Store) Rename(ctx context.Context, oldRel, newRel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.statFile(ctx, oldRel); err == nil {
		return s.moveObject(ctx, s.fileKey(oldRel), s.fileKey(newRel))
	}

	oldPrefix := s.dirKey(oldRel)
	newPrefix := s.dirKey(newRel)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(oldPrefix),
	})

	moved := false
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fserrors.NewIO(oldRel, fmt.Errorf("s3 list objects: %w", err))
		}

		for _, obj := range page.Contents {
			oldKey := *obj.Key
			newKey := newPrefix + oldKey[len(oldPrefix):]
			if err := s.moveObject(ctx, oldKey, newKey); err != nil {
				return err
			}
			moved = true
		}
	}

	if !moved {
		return fserrors.NewNotFound(oldRel)
	}
	return nil
}

// Stat returns metadata for the entry at rel, checking the file key first
// and falling back to the directory marker.
func (s *Store) Stat(ctx context.Context, rel string) (backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return backend.Entry{}, err
	}

	if rel == "" {
		return backend.Entry{Kind: backend.KindDirectory}, nil
	}

	if entry, err := s.statFile(ctx, rel); err == nil {
		return entry, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dirKey(rel)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return backend.Entry{}, fserrors.NewNotFound(rel)
		}
		return backend.Entry{}, fserrors.NewIO(rel, fmt.Errorf("s3 head object: %w", err))
	}

	return backend.Entry{
		Name: baseName(rel),
		Kind: backend.KindDirectory,
	}, nil
}

// Flush is a no-op: PutObject is durable on return.
func (s *Store) Flush(ctx context.Context) error {
	return ctx.Err()
}

// WriteThrough reports that namespace changes must be mirrored immediately.
func (s *Store) WriteThrough() bool {
	return true
}

// Close releases nothing; the S3 client holds no local resources.
func (s *Store) Close() error {
	return nil
}

// HealthCheck verifies the bucket is accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// statFile heads the file object at rel.
func (s *Store) statFile(ctx context.Context, rel string) (backend.Entry, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(rel)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return backend.Entry{}, fserrors.NewNotFound(rel)
		}
		return backend.Entry{}, fserrors.NewIO(rel, fmt.Errorf("s3 head object: %w", err))
	}

	entry := backend.Entry{
		Name: baseName(rel),
		Kind: backend.KindFile,
	}
	if resp.ContentLength != nil {
		entry.Size = *resp.ContentLength
	}
	if resp.LastModified != nil {
		entry.ModTime = *resp.LastModified
	}
	return entry, nil
}

// moveObject copies src to dst and deletes src.
func (s *Store) moveObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		if isNotFoundError(err) {
			return fserrors.NewNotFound(srcKey)
		}
		return fserrors.NewIO(srcKey, fmt.Errorf("s3 copy object: %w", err))
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return fserrors.NewIO(srcKey, fmt.Errorf("s3 delete object: %w", err))
	}
	return nil
}

// deleteByPrefix removes all objects below prefix using batch delete.
func (s *Store) deleteByPrefix(ctx context.Context, rel, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	deleted := false
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fserrors.NewIO(rel, fmt.Errorf("s3 list objects: %w", err))
		}

		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, len(page.Contents))
		for i, obj := range page.Contents {
			objects[i] = types.ObjectIdentifier{Key: obj.Key}
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return fserrors.NewIO(rel, fmt.Errorf("s3 delete objects: %w", err))
		}
		deleted = true
	}

	if !deleted {
		return fserrors.NewNotFound(rel)
	}
	return nil
}

// isNotFoundError checks if an error is an S3 not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

// baseName returns the final element of a relative path.
func baseName(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}
