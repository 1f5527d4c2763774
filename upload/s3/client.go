package s3

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ImageMarkup/isic/upload"
	"github.com/ImageMarkup/isic/upload/s3/errors"
	"github.com/ImageMarkup/isic/upload/s3/internal/s3api"
	"github.com/ImageMarkup/isic/upload/s3/internal/uploader"
	"github.com/ImageMarkup/isic/upload/s3/internal/validation"
)

// Client implements upload.Client on top of S3.
type Client struct {
	s3Client s3api.S3API
	uploader *uploader.Uploader
	cfg      Config
	logger   *slog.Logger

	// newID generates the per-file key segment
	newID func() string
}

var _ upload.Client = (*Client)(nil)

func newConfig(opts ...Option) Config {
	cfg := Config{
		MaxRetries:         3,
		PartSize:           uploader.DefaultPartSize,
		Concurrency:        uploader.DefaultConcurrency,
		MultipartThreshold: uploader.DefaultMultipartThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// New creates a Client. AWS credentials come from the default credential chain
// unless WithAWSConfig is given.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	clientCfg := newConfig(opts...)

	var cfg aws.Config
	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		var err error
		cfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)
	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if clientCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		})
	}
	switch {
	case clientCfg.CustomHTTPClient != nil:
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = clientCfg.CustomHTTPClient
		})
	case clientCfg.Timeout > 0:
		httpClient := &http.Client{Timeout: clientCfg.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return newClient(s3.NewFromConfig(cfg, s3Opts...), clientCfg)
}

// NewWithClient creates a Client around a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(s3Client s3api.S3API, opts ...Option) (*Client, error) {
	return newClient(s3Client, newConfig(opts...))
}

func newClient(s3Client s3api.S3API, cfg Config) (*Client, error) {
	if err := validation.ValidateBucketName(cfg.Bucket); err != nil {
		return nil, err
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if cfg.Prefix != "" {
		if err := validation.ValidateObjectKey(cfg.Prefix); err != nil {
			return nil, err
		}
	}
	switch cfg.SSEType {
	case "", "AES256", "aws:kms":
	default:
		return nil, errors.NewError("client initialization", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("unsupported server-side encryption %q", cfg.SSEType))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		s3Client: s3Client,
		uploader: uploader.New(s3Client, uploader.Config{
			PartSize:           cfg.PartSize,
			Concurrency:        cfg.Concurrency,
			MultipartThreshold: cfg.MultipartThreshold,
		}),
		cfg:    cfg,
		logger: logger,
		newID:  func() string { return uuid.NewString() },
	}, nil
}

// Bucket returns the destination bucket.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// Upload implements upload.Client. The handle value and key are both the object key.
func (c *Client) Upload(ctx context.Context, file upload.File, field string) (upload.Handle, error) {
	key := c.objectKey(field, file.Name())
	if err := validation.ValidateObjectKey(key); err != nil {
		return upload.Handle{}, err
	}

	contentType := file.ContentType()
	if err := validation.ValidateContentType(contentType); err != nil {
		contentType = upload.DefaultContentType
	}

	rc, err := file.Open()
	if err != nil {
		return upload.Handle{}, errors.NewError("upload", err).WithBucket(c.cfg.Bucket).WithKey(key)
	}
	defer rc.Close()

	in := uploader.Input{
		Bucket:       c.cfg.Bucket,
		Key:          key,
		ContentType:  contentType,
		StorageClass: c.cfg.StorageClass,
		Metadata: validation.SanitizeMetadata(map[string]string{
			"field":         field,
			"original-name": file.Name(),
		}),
	}
	if c.cfg.SSEType != "" {
		in.SSE = &uploader.SSE{Type: c.cfg.SSEType, KMSKeyID: c.cfg.KMSKeyID}
	}

	res, err := c.uploader.Upload(ctx, in, rc, file.Size())
	if err != nil {
		return upload.Handle{}, err
	}

	c.logger.Debug("object stored",
		"bucket", c.cfg.Bucket, "key", key, "size", res.Size, "parts", res.Parts, "duration", res.Duration)

	return upload.Handle{Value: key, Key: key}, nil
}

func (c *Client) objectKey(field, name string) string {
	parts := []string{}
	if c.cfg.Prefix != "" {
		parts = append(parts, c.cfg.Prefix)
	}
	if field != "" {
		parts = append(parts, validation.SanitizeKeySegment(field))
	}
	parts = append(parts, c.newID(), validation.SanitizeKeySegment(name))
	return path.Join(parts...)
}
