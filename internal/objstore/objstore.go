// Package objstore provides access to the landing bucket through an
// S3-compatible provider.
package objstore

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config has the parameters used to connect to the object store.
type Config struct {
	Endpoint  string // Server endpoint, e.g. "localhost:9000".
	AccessKey string
	SecretKey string
	Insecure  bool // For self-hosted providers without TLS.
}

// Reader fetches object contents. The task-runner is its only consumer;
// the coordinator never touches object data itself.
type Reader interface {
	// Get returns the content of the named object.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Writer uploads objects. Only the seeder uses it.
type Writer interface {
	// Put stores the content under the given bucket and key.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error
}

// s3Access defines the functions we use from the minio SDK. Mainly
// used for testing to implement a mock component.
type s3Access interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Client is a Reader and Writer backed by an S3-compatible provider.
type Client struct {
	access s3Access
}

// New connects to the configured provider.
func New(cfg Config) (*Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: !cfg.Insecure,
	})
	if err != nil {
		return nil, err
	}
	return &Client{access: &minioAccess{ref: minioClient}}, nil
}

// Get implements Reader.
func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return c.access.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

// Put implements Writer.
func (c *Client) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	_, err := c.access.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: "text/csv"})
	return err
}

// minioAccess wraps a *minio.Client so GetObject returns an
// io.ReadCloser rather than a *minio.Object. This simplifies testing.
type minioAccess struct {
	ref *minio.Client
}

var _ s3Access = &minioAccess{}

func (m *minioAccess) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return m.ref.GetObject(ctx, bucketName, objectName, opts)
}

func (m *minioAccess) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return m.ref.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}
