package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"

	"github.com/ImageMarkup/isic/auth"
	"github.com/ImageMarkup/isic/auth/secrets"
	"github.com/ImageMarkup/isic/doi"
	"github.com/ImageMarkup/isic/doi/doitypes"
	"github.com/ImageMarkup/isic/upload"
	"github.com/ImageMarkup/isic/upload/fieldfile"
	"github.com/ImageMarkup/isic/upload/minio"
	"github.com/ImageMarkup/isic/upload/s3"
)

// Upload backends.
const (
	backendFieldFile = "fieldfile"
	backendS3        = "s3"
	backendMinio     = "minio"
)

// session holds the clients one command invocation needs.
type session struct {
	settings settings
	logger   *slog.Logger
	http     *http.Client
	auth     auth.Context
	uploads  upload.Client
}

func newSession(ctx context.Context, stderr io.Writer) (*session, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}
	s, err := loadSettings(os.Getenv)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: s.LogLevel}))

	// The jar keeps the CSRF cookie that pairs with a scraped token.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Jar: jar, Timeout: s.Timeout}

	src, err := tokenSource(ctx, s, httpClient, logger)
	if err != nil {
		return nil, err
	}
	authCtx, err := auth.Resolve(ctx, src, s.TokenHeader)
	if err != nil {
		return nil, err
	}

	uploads, err := uploadClient(ctx, s, authCtx, httpClient, logger)
	if err != nil {
		return nil, err
	}

	return &session{settings: s, logger: logger, http: httpClient, auth: authCtx, uploads: uploads}, nil
}

func tokenSource(ctx context.Context, s settings, client *http.Client, logger *slog.Logger) (auth.TokenSource, error) {
	switch {
	case s.Token != "":
		return auth.Static(s.Token), nil
	case s.TokenSecret != "":
		opts := []secrets.Option{secrets.WithLogger(logger)}
		if s.TokenSecretKey != "" {
			opts = append(opts, secrets.WithJSONKey(s.TokenSecretKey))
		}
		if s.Region != "" {
			opts = append(opts, secrets.WithRegion(s.Region))
		}
		if s.SecretsURL != "" {
			opts = append(opts, secrets.WithEndpoint(s.SecretsURL))
		}
		opts = append(opts, secrets.WithCustomRetryer(secrets.NewRetryer(s.SecretRetries, 0, 0)))
		return secrets.New(ctx, s.TokenSecret, opts...)
	case s.CSRFPage != "":
		return &auth.PageTokenSource{URL: s.CSRFPage, Client: client}, nil
	}
	return nil, fmt.Errorf("no token configured: set DOIFLOW_TOKEN, DOIFLOW_TOKEN_SECRET or DOIFLOW_CSRF_PAGE")
}

func uploadClient(
	ctx context.Context,
	s settings,
	authCtx auth.Context,
	client *http.Client,
	logger *slog.Logger,
) (upload.Client, error) {
	switch s.Backend {
	case backendS3:
		opts := []s3.Option{
			s3.WithBucket(s.Bucket),
			s3.WithPrefix(s.Prefix),
			s3.WithForcePathStyle(s.S3PathStyle),
			s3.WithLogger(logger),
		}
		if s.Region != "" {
			opts = append(opts, s3.WithRegion(s.Region))
		}
		if s.S3Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(s.S3Endpoint))
		}
		if s.Timeout > 0 {
			opts = append(opts, s3.WithTimeout(s.Timeout))
		}
		return s3.New(ctx, opts...)
	case backendMinio:
		return minio.New(minio.Config{
			Endpoint:        s.MinioEndpoint,
			AccessKeyID:     s.MinioAccessKey,
			SecretAccessKey: s.MinioSecretKey,
			Region:          s.Region,
			Secure:          s.MinioSecure,
			Bucket:          s.Bucket,
			Prefix:          s.Prefix,
			Logger:          logger,
		})
	}
	return fieldfile.New(fieldfile.Config{
		BaseURL:    strings.TrimSuffix(s.BaseURL, "/") + "/" + fieldfile.DefaultPath,
		HTTPClient: client,
		Auth:       authCtx,
		Logger:     logger,
	})
}

// options returns the workflow options for this session. The token was resolved
// once already, so the workflow gets it as a static source.
func (s *session) options(extra ...doitypes.Option) []doitypes.Option {
	opts := []doitypes.Option{
		doi.WithBaseURL(s.settings.BaseURL),
		doi.WithUploadClient(s.uploads),
		doi.WithTokenSource(auth.Static(s.auth.Token)),
		doi.WithTokenHeader(s.auth.Header),
		doi.WithHTTPClient(s.http),
		doi.WithLogger(s.logger),
	}
	return append(opts, extra...)
}
