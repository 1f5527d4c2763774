// Package submission talks to the DOI endpoints of the archive API: creating a
// draft DOI, updating its description and publishing it.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ImageMarkup/isic/auth"
	doierrors "github.com/ImageMarkup/isic/doi/errors"
)

// maxErrorBody caps how much of a failed response is read.
const maxErrorBody = 1 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.isic-archive.com/api/v2/
	BaseURL string

	HTTPClient *http.Client
	Auth       auth.Context
	Logger     *slog.Logger
	Tracer     trace.Tracer
}

// Client issues DOI requests.
type Client struct {
	base   *url.URL
	http   *http.Client
	auth   auth.Context
	logger *slog.Logger
	tracer trace.Tracer
}

// Response is a successful DOI creation.
type Response struct {
	Slug     string
	Status   int
	Duration time.Duration
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, doierrors.NewError("submission.New", doierrors.ErrInvalidConfig).
			WithMessage("base URL cannot be empty")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, doierrors.NewError("submission.New", doierrors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("invalid base URL %q", cfg.BaseURL))
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("")
	}

	return &Client{
		base:   base,
		http:   cfg.HTTPClient,
		auth:   cfg.Auth,
		logger: cfg.Logger,
		tracer: cfg.Tracer,
	}, nil
}

// Submit creates a draft DOI. A non-2xx response yields an error carrying the
// server's reason. A 2xx response with an unreadable body yields
// ErrInvalidResponse; the DOI exists on the server in that case.
func (c *Client) Submit(ctx context.Context, p Payload) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int("doi.collection_id", p.CollectionID),
		attribute.Int("doi.supplemental_files", len(p.SupplementalFiles)),
		attribute.Int("doi.related_identifiers", len(p.RelatedIdentifiers)),
	))
	defer span.End()

	start := time.Now()
	c.logger.Info("submitting DOI",
		"collection_id", p.CollectionID,
		"supplemental_files", len(p.SupplementalFiles),
		"related_identifiers", len(p.RelatedIdentifiers))

	var out struct {
		Slug string `json:"slug"`
	}
	status, err := c.do(ctx, "submit", http.MethodPost, "doi/", p, &out, FallbackCreate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		c.logger.Error("DOI submission failed", "collection_id", p.CollectionID, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.String("doi.slug", out.Slug))
	c.logger.Info("DOI submitted", "collection_id", p.CollectionID, "slug", out.Slug, "status", status)

	return &Response{Slug: out.Slug, Status: status, Duration: time.Since(start)}, nil
}

// UpdateDescription replaces the description of the draft DOI slug.
func (c *Client) UpdateDescription(ctx context.Context, slug, description string) error {
	if slug == "" {
		return doierrors.NewError("updateDescription", doierrors.ErrInvalidInput).
			WithMessage("slug cannot be empty")
	}

	ctx, span := c.tracer.Start(ctx, "submission.update_description",
		trace.WithAttributes(attribute.String("doi.slug", slug)))
	defer span.End()

	body := struct {
		Description string `json:"description"`
	}{Description: description}

	if _, err := c.do(ctx, "updateDescription", http.MethodPatch, "doi/"+slug+"/",
		body, nil, FallbackUpdate); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}

	c.logger.Info("DOI description updated", "slug", slug)
	return nil
}

// Publish starts publication of the draft DOI slug.
func (c *Client) Publish(ctx context.Context, slug string) error {
	if slug == "" {
		return doierrors.NewError("publish", doierrors.ErrInvalidInput).
			WithMessage("slug cannot be empty")
	}

	ctx, span := c.tracer.Start(ctx, "submission.publish",
		trace.WithAttributes(attribute.String("doi.slug", slug)))
	defer span.End()

	if _, err := c.do(ctx, "publish", http.MethodPost, "doi/"+slug+"/publish/",
		nil, nil, FallbackPublish); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}

	c.logger.Info("DOI publish started", "slug", slug)
	return nil
}

// do sends one JSON request and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(
	ctx context.Context,
	op, method, path string,
	in, out any,
	fallback string,
) (int, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, doierrors.NewError(op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reqBody)
	if err != nil {
		return 0, doierrors.NewError(op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.auth.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		e := doierrors.NewError(op, fmt.Errorf("%w: %w", doierrors.ErrSubmissionFailed, err)).
			WithMessage(fallback)
		e.Code = doierrors.CodeNetwork
		return 0, e
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e := doierrors.NewError(op, doierrors.ErrSubmissionFailed).
			WithStatus(resp.StatusCode).
			WithMessage(ErrorMessage(data, fallback))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			e.Code = doierrors.CodeUnauthorized
		}
		return resp.StatusCode, e
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, doierrors.NewError(op,
				fmt.Errorf("%w: decode response: %w", doierrors.ErrInvalidResponse, err)).
				WithStatus(resp.StatusCode).
				WithMessage(MalformedResponse)
		}
	}
	return resp.StatusCode, nil
}
