// Package archive optionally uploads digested schema snapshots to
// S3-compatible object storage for later inspection.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// client narrows minio.Client to what the archiver uses so tests can
// fake it.
type client interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

type Archiver struct {
	client client
	bucket string
	prefix string
	now    func() time.Time
}

func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	archiver := &Archiver{
		client: mc,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: cleanPrefix(cfg.Prefix),
		now:    time.Now,
	}
	if cfg.AutoCreateBucket {
		if err := archiver.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return archiver, nil
}

// NewWithClient is used by tests.
func NewWithClient(bucket, prefix string, c client, now func() time.Time) (*Archiver, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Archiver{client: c, bucket: strings.TrimSpace(bucket), prefix: cleanPrefix(prefix), now: now}, nil
}

// StoreSnapshot uploads the snapshot JSON under a timestamped key and
// returns that key.
func (a *Archiver) StoreSnapshot(ctx context.Context, snapshotJSON []byte) (string, error) {
	if len(snapshotJSON) == 0 {
		return "", fmt.Errorf("snapshot payload is empty")
	}

	key := fmt.Sprintf("enriched_schema_%s.json", a.now().UTC().Format("20060102T150405Z"))
	if a.prefix != "" {
		key = path.Join(a.prefix, key)
	}

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(snapshotJSON), int64(len(snapshotJSON)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("put snapshot %q: %w", key, err)
	}
	return key, nil
}

func (a *Archiver) ensureBucket(ctx context.Context, region string) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", a.bucket, err)
	}
	return nil
}

func cleanPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}
