package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"tsencode/internal/config"
)

// GCS uploads to a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS builds a GCS uploader authenticated with a service account file.
func NewGCS(ctx context.Context, cfg config.Archive, extra ...option.ClientOption) (*GCS, error) {
	opts := make([]option.ClientOption, 0, 1+len(extra))
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, extra...)
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCS{client: client, bucket: cfg.Bucket}, nil
}

// Upload streams localPath to key.
func (u *GCS) Upload(ctx context.Context, localPath, key string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	wc := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType(localPath)
	if _, err := io.Copy(wc, file); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("copy to gs://%s/%s: %w", u.bucket, key, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", u.bucket, key, err)
	}
	return "gs://" + u.bucket + "/" + key, nil
}

// Close releases the storage client.
func (u *GCS) Close() error {
	return u.client.Close()
}
