package transcript

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

// ObjectPutter is the part of *minio.Client used by the mirror.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// s3Mirror writes every exchange as a JSON object to an S3 compatible bucket.
type s3Mirror struct {
	client ObjectPutter
	bucket string
}

func NewS3Client(ctx context.Context, opts S3Options) (*minio.Client, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", opts.Bucket)
	}
	return client, nil
}

func NewS3Mirror(client ObjectPutter, bucket string) Mirror {
	return &s3Mirror{client: client, bucket: bucket}
}

// ObjectKey lays exchanges out per channel, user and day.
func ObjectKey(ex Exchange) string {
	return fmt.Sprintf("%s/%s/%s/%s.json",
		ex.Channel,
		url.PathEscape(ex.UserID),
		ex.CreatedAt.UTC().Format("2006-01-02"),
		strconv.FormatInt(ex.CreatedAt.UnixNano(), 10),
	)
}

func (m *s3Mirror) Put(ctx context.Context, ex Exchange) error {
	body, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("encode exchange: %w", err)
	}

	_, err = m.client.PutObject(ctx, m.bucket, ObjectKey(ex), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"model": ex.Model},
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}
