package archive

import (
	"context"
	"fmt"
	"path"

	"github.com/imamik/k8tenant/internal/config"
	"github.com/imamik/k8tenant/internal/platform/s3"
)

// objectPutter is the subset of the S3 client used by S3Mirror.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
}

// S3Mirror uploads bundle files to {prefix}/{bundleID}/{file}.
type S3Mirror struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Mirror connects to the configured bucket, creating it if needed.
func NewS3Mirror(ctx context.Context, cfg config.S3Config) (*S3Mirror, error) {
	client, err := s3.NewClient(ctx, s3.Options{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucket(ctx, cfg.Bucket); err != nil {
		return nil, fmt.Errorf("archive mirror unavailable: %w", err)
	}
	return &S3Mirror{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Upload implements Mirror.
func (m *S3Mirror) Upload(ctx context.Context, bundleID, file string, data []byte) error {
	return m.client.PutObject(ctx, m.bucket, path.Join(m.prefix, bundleID, file), data)
}
