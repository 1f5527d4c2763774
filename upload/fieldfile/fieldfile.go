// Package fieldfile uploads files through the archive's presigned upload API
// (django-s3-file-field). The server hands out presigned part URLs, the parts are
// sent straight to object storage, and the server returns a signed field value
// that identifies the stored object in later API calls.
//
// Protocol:
//
//	POST {base}upload-initialize/  -> object key, upload id, presigned parts, signature
//	PUT  each part URL             -> ETag
//	POST {base}upload-complete/    -> completion URL and body
//	POST completion URL            -> storage assembles the object
//	POST {base}finalize/           -> field value
package fieldfile

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

	"golang.org/x/sync/errgroup"

	"github.com/ImageMarkup/isic/auth"
	"github.com/ImageMarkup/isic/upload"
)

// DefaultPath is the upload API path relative to the API root.
const DefaultPath = "s3-upload/"

// DefaultConcurrency is the number of parts sent at once.
const DefaultConcurrency = 4

// Config configures a Client.
type Config struct {
	// BaseURL is the upload API root, e.g. https://api.isic-archive.com/api/v2/s3-upload/
	BaseURL string

	HTTPClient  *http.Client
	Auth        auth.Context
	Logger      *slog.Logger
	Concurrency int
}

// Client implements upload.Client.
type Client struct {
	base        *url.URL
	http        *http.Client
	auth        auth.Context
	logger      *slog.Logger
	concurrency int
}

var _ upload.Client = (*Client)(nil)

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("fieldfile: invalid base URL %q", cfg.BaseURL)
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
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &Client{
		base:        base,
		http:        cfg.HTTPClient,
		auth:        cfg.Auth,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}, nil
}

type initializeRequest struct {
	FieldID     string `json:"field_id"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}

type presignedPart struct {
	PartNumber int    `json:"part_number"`
	Size       int64  `json:"size"`
	UploadURL  string `json:"upload_url"`
}

type initializeResponse struct {
	ObjectKey       string          `json:"object_key"`
	UploadID        string          `json:"upload_id"`
	Parts           []presignedPart `json:"parts"`
	UploadSignature string          `json:"upload_signature"`
}

type completedPart struct {
	PartNumber int    `json:"part_number"`
	Size       int64  `json:"size"`
	ETag       string `json:"etag"`
}

type completeRequest struct {
	UploadSignature string          `json:"upload_signature"`
	UploadID        string          `json:"upload_id"`
	Parts           []completedPart `json:"parts"`
}

type completeResponse struct {
	CompleteURL string `json:"complete_url"`
	Body        string `json:"body"`
}

type finalizeRequest struct {
	UploadSignature string `json:"upload_signature"`
}

type finalizeResponse struct {
	FieldValue string `json:"field_value"`
}

// Upload implements upload.Client.
func (c *Client) Upload(ctx context.Context, file upload.File, field string) (upload.Handle, error) {
	var init initializeResponse
	err := c.post(ctx, "upload-initialize/", initializeRequest{
		FieldID:     field,
		FileName:    file.Name(),
		FileSize:    file.Size(),
		ContentType: file.ContentType(),
	}, &init)
	if err != nil {
		return upload.Handle{}, fmt.Errorf("fieldfile: initialize %q: %w", file.Name(), err)
	}
	if err := validateParts(init.Parts, file.Size()); err != nil {
		return upload.Handle{}, fmt.Errorf("fieldfile: initialize %q: %w", file.Name(), err)
	}

	c.logger.Debug("upload initialized",
		"name", file.Name(), "object_key", init.ObjectKey, "parts", len(init.Parts))

	parts, err := c.sendParts(ctx, file, init.Parts)
	if err != nil {
		return upload.Handle{}, fmt.Errorf("fieldfile: upload %q: %w", file.Name(), err)
	}

	var complete completeResponse
	err = c.post(ctx, "upload-complete/", completeRequest{
		UploadSignature: init.UploadSignature,
		UploadID:        init.UploadID,
		Parts:           parts,
	}, &complete)
	if err != nil {
		return upload.Handle{}, fmt.Errorf("fieldfile: complete %q: %w", file.Name(), err)
	}
	if err := c.completeStorage(ctx, complete); err != nil {
		return upload.Handle{}, fmt.Errorf("fieldfile: complete %q: %w", file.Name(), err)
	}

	var final finalizeResponse
	err = c.post(ctx, "finalize/", finalizeRequest{UploadSignature: init.UploadSignature}, &final)
	if err != nil {
		return upload.Handle{}, fmt.Errorf("fieldfile: finalize %q: %w", file.Name(), err)
	}
	if final.FieldValue == "" {
		return upload.Handle{}, fmt.Errorf("fieldfile: finalize %q: empty field value", file.Name())
	}

	return upload.Handle{Value: final.FieldValue, Key: init.ObjectKey}, nil
}

// validateParts checks the presigned parts cover the file exactly.
func validateParts(parts []presignedPart, size int64) error {
	if len(parts) == 0 {
		return fmt.Errorf("server returned no parts")
	}
	var total int64
	for i, p := range parts {
		if p.UploadURL == "" {
			return fmt.Errorf("part %d has no upload URL", p.PartNumber)
		}
		if p.Size < 0 || (p.Size == 0 && i != len(parts)-1) {
			return fmt.Errorf("part %d has invalid size %d", p.PartNumber, p.Size)
		}
		total += p.Size
	}
	if total != size {
		return fmt.Errorf("parts cover %d bytes, file has %d", total, size)
	}
	return nil
}

// sendParts reads the file sequentially and sends up to c.concurrency parts at once.
func (c *Client) sendParts(ctx context.Context, file upload.File, parts []presignedPart) ([]completedPart, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	completed := make([]completedPart, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, part := range parts {
		data := make([]byte, part.Size)
		if _, err := io.ReadFull(rc, data); err != nil {
			_ = g.Wait()
			return nil, fmt.Errorf("read part %d: %w", part.PartNumber, err)
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			etag, err := c.putPart(gctx, part.UploadURL, data)
			if err != nil {
				return fmt.Errorf("part %d: %w", part.PartNumber, err)
			}
			completed[i] = completedPart{PartNumber: part.PartNumber, Size: part.Size, ETag: etag}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return completed, nil
}

func (c *Client) putPart(ctx context.Context, uploadURL string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.ContentLength = int64(len(data))

	// Presigned storage URLs must not receive the API token.
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("storage returned status %d", resp.StatusCode)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		return "", fmt.Errorf("storage response has no ETag")
	}
	return etag, nil
}

func (c *Client) completeStorage(ctx context.Context, complete completeResponse) error {
	if complete.CompleteURL == "" {
		return fmt.Errorf("server returned no completion URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, complete.CompleteURL,
		strings.NewReader(complete.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("storage returned status %d", resp.StatusCode)
	}
	return nil
}

// post sends a JSON request to the upload API and decodes the JSON response.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.auth.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
