package secrets

import (
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
)

type options struct {
	logger    *slog.Logger
	retryer   aws.Retryer
	jsonKey   string
	awsConfig *aws.Config
	region    string
	endpoint  string
}

// Option configures a TokenSource.
type Option func(*options)

// WithLogger sets the structured logger. Secret values are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCustomRetryer replaces the SDK retryer. Ignored by NewWithAPI.
func WithCustomRetryer(retryer aws.Retryer) Option {
	return func(o *options) {
		o.retryer = retryer
	}
}

// WithJSONKey treats the secret as a JSON object and returns the string field key.
func WithJSONKey(key string) Option {
	return func(o *options) {
		o.jsonKey = key
	}
}

// WithAWSConfig uses cfg instead of the default credential chain.
func WithAWSConfig(cfg *aws.Config) Option {
	return func(o *options) {
		o.awsConfig = cfg
	}
}

// WithRegion overrides the AWS region.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithEndpoint sets a custom endpoint, e.g. LocalStack.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}
