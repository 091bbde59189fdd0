// Package storage keeps profile images in an S3-compatible object store.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/core/port"
	"github.com/spaceuser/iam-service/internal/infra/config"
	"github.com/spaceuser/iam-service/internal/infra/logger"
)

// ImageStore implements port.ImageStore backed by MinIO. Objects are keyed
// by the account email so a re-upload replaces the previous image set.
type ImageStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	useSSL   bool
	logger   *zap.Logger
}

// NewImageStore connects to the object store and ensures the bucket exists.
func NewImageStore(ctx context.Context, cfg config.StorageSettings, log *zap.Logger) (*ImageStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	store := &ImageStore{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: cfg.Endpoint,
		useSSL:   cfg.UseSSL,
		logger:   log,
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return store, nil
}

// SaveProfileImage uploads the image under profile/<email>/<filename> and
// returns the public path stored on the user row.
func (s *ImageStore) SaveProfileImage(ctx context.Context, email, filename, contentType string, data []byte) (string, error) {
	if email == "" || filename == "" {
		return "", fmt.Errorf("email and filename are required")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image data is empty")
	}

	objectName := objectNameFor(email, filename)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload profile image: %w", err)
	}

	s.logger.Debug("profile image stored",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("object", objectName),
	)

	return s.publicURL(objectName), nil
}

// RemoveProfileImages deletes every stored image for the account.
func (s *ImageStore) RemoveProfileImages(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	prefix := "profile/" + sanitizeSegment(email) + "/"
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})

	for object := range objects {
		if object.Err != nil {
			return fmt.Errorf("list profile images: %w", object.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove profile image %s: %w", object.Key, err)
		}
	}

	return nil
}

func (s *ImageStore) publicURL(objectName string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   s.endpoint,
		Path:   "/" + s.bucket + "/" + objectName,
	}).String()
}

func objectNameFor(email, filename string) string {
	return path.Join("profile", sanitizeSegment(email), path.Base(filename))
}

func sanitizeSegment(segment string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '#':
			return '_'
		}
		return r
	}, segment)
}

var _ port.ImageStore = (*ImageStore)(nil)
