// Package artifact keeps copies of raw worker output next to the analysis
// record so a result can be traced back to what the scraper actually saw.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive stores raw stage output keyed by analysis id and stage.
type Archive interface {
	Put(ctx context.Context, jobID, stage string, body []byte) (string, error)
}

// ObjectKey is the location of a stage payload inside the bucket.
func ObjectKey(jobID, stage string) string {
	return path.Join("analyses", jobID, stage+".json")
}

// Noop discards payloads. It is used when no object store is configured.
type Noop struct{}

func (Noop) Put(_ context.Context, jobID, stage string, _ []byte) (string, error) {
	return ObjectKey(jobID, stage), nil
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioArchive uploads payloads to an S3 compatible bucket.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

func NewMinioArchive(ctx context.Context, cfg MinioConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioArchive{client: client, bucket: cfg.Bucket}, nil
}

func (a *MinioArchive) Put(ctx context.Context, jobID, stage string, body []byte) (string, error) {
	key := ObjectKey(jobID, stage)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}
