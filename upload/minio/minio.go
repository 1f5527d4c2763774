// Package minio uploads supplemental files to an S3-compatible MinIO deployment.
// It is the backend of choice for local development and self-hosted archives.
package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ImageMarkup/isic/upload"
	s3errors "github.com/ImageMarkup/isic/upload/s3/errors"
)

// ObjectPutter is the subset of *minio.Client used for uploads.
type ObjectPutter interface {
	PutObject(
		ctx context.Context,
		bucketName, objectName string,
		reader io.Reader,
		objectSize int64,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
}

// Config configures a Client.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Secure          bool
	Bucket          string
	Prefix          string

	// PartSize is passed through to minio-go; zero lets the library choose
	PartSize uint64

	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client implements upload.Client against a MinIO bucket.
type Client struct {
	api    ObjectPutter
	bucket string
	prefix string
	part   uint64
	logger *slog.Logger

	newID func() string
}

var _ upload.Client = (*Client)(nil)

// New connects to cfg.Endpoint with static credentials.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, s3errors.NewError("client initialization", s3errors.ErrInvalidInput).
			WithMessage("endpoint cannot be empty")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure:    cfg.Secure,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, s3errors.NewError("client initialization", err)
	}
	return NewWithClient(mc, cfg)
}

// NewWithClient wraps an existing putter. Only the bucket, prefix, part size and
// logger fields of cfg are used.
func NewWithClient(api ObjectPutter, cfg Config) (*Client, error) {
	if api == nil {
		return nil, s3errors.NewError("client initialization", s3errors.ErrInvalidInput).
			WithMessage("minio client cannot be nil")
	}
	if cfg.Bucket == "" {
		return nil, s3errors.NewError("client initialization", s3errors.ErrInvalidBucketName).
			WithMessage("bucket cannot be empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		api:    api,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		part:   cfg.PartSize,
		logger: logger,
		newID:  uuid.NewString,
	}, nil
}

// Upload implements upload.Client. The handle value and key are both the object key.
func (c *Client) Upload(ctx context.Context, file upload.File, field string) (upload.Handle, error) {
	key := c.objectKey(field, file.Name())

	rc, err := file.Open()
	if err != nil {
		return upload.Handle{}, s3errors.NewError("upload", err).WithBucket(c.bucket).WithKey(key)
	}
	defer rc.Close()

	info, err := c.api.PutObject(ctx, c.bucket, key, rc, file.Size(), minio.PutObjectOptions{
		ContentType: file.ContentType(),
		PartSize:    c.part,
		UserMetadata: map[string]string{
			"field":         field,
			"original-name": asciiOnly(file.Name()),
		},
	})
	if err != nil {
		return upload.Handle{}, translateError(err).WithBucket(c.bucket).WithKey(key)
	}
	if info.Size != file.Size() {
		return upload.Handle{}, s3errors.NewError("upload", s3errors.ErrInvalidInput).
			WithBucket(c.bucket).WithKey(key).
			WithMessage(fmt.Sprintf("stored %d bytes, expected %d", info.Size, file.Size()))
	}

	c.logger.Debug("object stored", "bucket", c.bucket, "key", key, "size", info.Size, "etag", info.ETag)
	return upload.Handle{Value: key, Key: key}, nil
}

func (c *Client) objectKey(field, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = "file"
	}
	return path.Join(c.prefix, field, c.newID(), base)
}

// translateError maps MinIO error codes onto the shared storage sentinels.
func translateError(err error) *s3errors.Error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return s3errors.NewError("upload", fmt.Errorf("%w: %s", s3errors.ErrAccessDenied, resp.Message))
	case "NoSuchBucket":
		return s3errors.NewError("upload", fmt.Errorf("%w: %s", s3errors.ErrBucketNotFound, resp.Message))
	case "EntityTooLarge":
		return s3errors.NewError("upload", fmt.Errorf("%w: %s", s3errors.ErrEntityTooLarge, resp.Message))
	}
	return s3errors.NewError("upload", err)
}

func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, s)
}
