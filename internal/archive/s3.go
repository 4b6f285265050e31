package archive

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"tsencode/internal/config"
)

// S3 uploads to an S3 bucket with static credentials.
type S3 struct {
	uploader *manager.Uploader
	bucket   string
	endpoint string
}

// NewS3 builds an S3 uploader. A custom endpoint switches to path-style
// addressing for S3-compatible services.
func NewS3(cfg config.Archive) *S3 {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: creds,
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	client := s3.New(opts)
	return &S3{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		endpoint: endpoint,
	}
}

// Upload streams localPath to key.
func (u *S3) Upload(ctx context.Context, localPath, key string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return "", fmt.Errorf("upload object %s to bucket %s: %w", key, u.bucket, err)
	}
	if out != nil && out.Location != "" {
		return out.Location, nil
	}
	return u.objectURL(key), nil
}

func (u *S3) objectURL(key string) string {
	if u.endpoint != "" {
		return u.endpoint + "/" + u.bucket + "/" + key
	}
	return "s3://" + u.bucket + "/" + key
}

// Close is a no-op; the S3 client holds no resources.
func (u *S3) Close() error {
	return nil
}
