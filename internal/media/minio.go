package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"ripple/internal/config"
	"ripple/internal/observability"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const storeSetupTimeout = 10 * time.Second

// minioAPI is the subset of the MinIO client used by the store.
// Narrowing the surface keeps the store testable without a live server.
type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// minioClientAdapter adapts *minio.Client to minioAPI (PutObject takes an
// io.Reader there; the adapter pins it to *bytes.Reader).
type minioClientAdapter struct {
	c *minio.Client
}

func (a minioClientAdapter) PutObject(ctx context.Context, bucket, object string, reader *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.c.PutObject(ctx, bucket, object, reader, size, opts)
}

func (a minioClientAdapter) RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error {
	return a.c.RemoveObject(ctx, bucket, object, opts)
}

func (a minioClientAdapter) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return a.c.BucketExists(ctx, bucket)
}

func (a minioClientAdapter) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return a.c.MakeBucket(ctx, bucket, opts)
}

// MinioStore stores image objects in a MinIO (S3-compatible) bucket and
// addresses them by durable public URL.
type MinioStore struct {
	client    minioAPI
	bucket    string
	publicURL string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinioStore{
		client:    minioClientAdapter{c: client},
		bucket:    cfg.MinioBucket,
		publicURL: strings.TrimRight(cfg.MinioPublicURL, "/"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeSetupTimeout)
	defer cancel()
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
		}
	}

	return s, nil
}

// Upload writes the original object (and its thumbnail when present) and
// returns the durable URL of the original.
func (s *MinioStore) Upload(ctx context.Context, u *Upload) (string, error) {
	objectName := "posts/" + uuid.New().String() + extForContentType(u.ContentType)

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(u.Content), int64(len(u.Content)),
		minio.PutObjectOptions{ContentType: u.ContentType})
	if err != nil {
		observability.MediaStoreOperations.WithLabelValues("upload", "error").Inc()
		return "", fmt.Errorf("put object %q: %w", objectName, err)
	}

	if len(u.Thumbnail) > 0 {
		thumbName := ThumbnailObjectName(objectName)
		if _, terr := s.client.PutObject(ctx, s.bucket, thumbName,
			bytes.NewReader(u.Thumbnail), int64(len(u.Thumbnail)),
			minio.PutObjectOptions{ContentType: "image/jpeg"}); terr != nil {
			// The original is already durable; a missing thumbnail only
			// degrades quality, so the upload still succeeds.
			observability.MediaStoreOperations.WithLabelValues("upload_thumbnail", "error").Inc()
		}
	}

	observability.MediaStoreOperations.WithLabelValues("upload", "ok").Inc()
	return s.publicURL + "/" + objectName, nil
}

// Delete removes the object (and thumbnail) referenced by a durable URL.
// URLs not produced by this store are ignored.
func (s *MinioStore) Delete(ctx context.Context, rawURL string) error {
	objectName := objectNameFromURL(s.publicURL, rawURL)
	if objectName == "" {
		return nil
	}

	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		observability.MediaStoreOperations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("remove object %q: %w", objectName, err)
	}
	// Thumbnail removal is best-effort.
	_ = s.client.RemoveObject(ctx, s.bucket, ThumbnailObjectName(objectName), minio.RemoveObjectOptions{})

	observability.MediaStoreOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}
