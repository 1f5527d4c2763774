package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/ImageMarkup/isic/auth"
)

// AWS error codes mapped to typed errors.
const (
	ResourceNotFoundException = "ResourceNotFoundException"
	AccessDeniedException     = "AccessDeniedException"
)

// TokenSource implements auth.TokenSource over a Secrets Manager secret.
type TokenSource struct {
	api      ManagerAPI
	secretID string
	opts     options
	logger   *slog.Logger
}

var _ auth.TokenSource = (*TokenSource)(nil)

// New creates a TokenSource for secretID using the default AWS configuration,
// unless WithAWSConfig is given.
func New(ctx context.Context, secretID string, opts ...Option) (*TokenSource, error) {
	o := applyOptions(opts)

	var cfg aws.Config
	if o.awsConfig != nil {
		cfg = *o.awsConfig
	} else {
		var err error
		cfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
	}
	if o.region != "" {
		cfg.Region = o.region
	}

	api := secretsmanager.NewFromConfig(cfg, func(so *secretsmanager.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
		if o.retryer != nil {
			so.Retryer = o.retryer
		}
	})
	return newTokenSource(api, secretID, o)
}

// NewWithAPI creates a TokenSource around an existing client, mainly for tests.
func NewWithAPI(api ManagerAPI, secretID string, opts ...Option) (*TokenSource, error) {
	if api == nil {
		return nil, fmt.Errorf("secrets manager client cannot be nil")
	}
	return newTokenSource(api, secretID, applyOptions(opts))
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newTokenSource(api ManagerAPI, secretID string, o options) (*TokenSource, error) {
	if secretID == "" {
		return nil, fmt.Errorf("secret name cannot be empty")
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TokenSource{api: api, secretID: secretID, opts: o, logger: logger}, nil
}

// Token implements auth.TokenSource. Every call reads the secret.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	raw, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	token, err := s.extract(raw)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "token retrieved", "secret_name", s.secretID)
	return token, nil
}

func (s *TokenSource) fetch(ctx context.Context) (string, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case ResourceNotFoundException:
				return "", ErrSecretNotFound
			case AccessDeniedException:
				return "", ErrAccessDenied
			}
			s.logger.ErrorContext(ctx, "failed to retrieve secret", "secret_name", s.secretID, "code", apiErr.ErrorCode())
			return "", fmt.Errorf("GetSecretValue operation failed: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		s.logger.ErrorContext(ctx, "failed to retrieve secret", "secret_name", s.secretID, "error", err)
		return "", fmt.Errorf("GetSecretValue operation failed: %w", err)
	}

	switch {
	case out.SecretString != nil && *out.SecretString != "":
		return *out.SecretString, nil
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary), nil
	}
	return "", ErrSecretEmpty
}

func (s *TokenSource) extract(raw string) (string, error) {
	if s.opts.jsonKey == "" {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", ErrInvalidSecret
	}
	value, ok := fields[s.opts.jsonKey].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("field %q: %w", s.opts.jsonKey, ErrSecretEmpty)
	}
	return value, nil
}
