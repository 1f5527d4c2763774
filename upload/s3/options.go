package s3

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Config holds configuration for a Client.
type Config struct {
	Bucket         string
	Prefix         string
	Region         string
	Endpoint       string
	ForcePathStyle bool
	MaxRetries     int
	Timeout        time.Duration

	PartSize           int64
	Concurrency        int
	MultipartThreshold int64

	StorageClass string
	SSEType      string
	KMSKeyID     string

	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Logger           *slog.Logger
}

// Option is a functional option for configuring a Client.
type Option func(*Config)

// WithBucket sets the destination bucket. Required.
func WithBucket(bucket string) Option {
	return func(c *Config) {
		c.Bucket = bucket
	}
}

// WithPrefix sets the key prefix every object is stored under.
func WithPrefix(prefix string) Option {
	return func(c *Config) {
		c.Prefix = prefix
	}
}

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL, e.g. for LocalStack.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces path-style URLs instead of virtual-hosted style.
func WithForcePathStyle(forcePathStyle bool) Option {
	return func(c *Config) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithMaxRetries sets the maximum number of attempts for failed requests.
// Default is 3.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout bounds each HTTP request made by the SDK.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithPartSize sets the multipart part size. S3 requires at least 5MB; smaller
// values are raised to that minimum.
func WithPartSize(partSize int64) Option {
	return func(c *Config) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithConcurrency sets how many parts of one file are sent at once.
// Default is 5.
func WithConcurrency(concurrency int) Option {
	return func(c *Config) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithMultipartThreshold sets the size from which multipart uploads are used.
// Default is 16MB.
func WithMultipartThreshold(threshold int64) Option {
	return func(c *Config) {
		if threshold > 0 {
			c.MultipartThreshold = threshold
		}
	}
}

// WithStorageClass sets the storage class of uploaded objects.
func WithStorageClass(storageClass string) Option {
	return func(c *Config) {
		c.StorageClass = storageClass
	}
}

// WithServerSideEncryption enables SSE. sseType is "AES256" or "aws:kms";
// kmsKeyID is only used with "aws:kms".
func WithServerSideEncryption(sseType, kmsKeyID string) Option {
	return func(c *Config) {
		c.SSEType = sseType
		c.KMSKeyID = kmsKeyID
	}
}

// WithAWSConfig uses cfg instead of loading the default configuration.
func WithAWSConfig(cfg *aws.Config) Option {
	return func(c *Config) {
		c.CustomAWSConfig = cfg
	}
}

// WithCustomHTTPClient sets the HTTP client used by the SDK.
func WithCustomHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
