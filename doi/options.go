package doi

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ImageMarkup/isic/auth"
	"github.com/ImageMarkup/isic/doi/doitypes"
	"github.com/ImageMarkup/isic/upload"
)

// DefaultBaseURL is the public archive API root.
const DefaultBaseURL = "https://api.isic-archive.com/api/v2/"

// WithBaseURL sets the API root the DOI endpoints are resolved against.
// Default is DefaultBaseURL.
func WithBaseURL(baseURL string) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.BaseURL = baseURL
	}
}

// WithUploadClient sets the client used for direct-to-storage transfers. Required.
func WithUploadClient(client upload.Client) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.UploadClient = client
	}
}

// WithTokenSource sets where the anti-forgery token is read from. The source is
// consulted once, during construction. Required unless WithToken is used.
func WithTokenSource(src auth.TokenSource) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.TokenSource = src
	}
}

// WithToken uses a fixed anti-forgery token.
func WithToken(token string) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.TokenSource = auth.Static(token)
	}
}

// WithTokenHeader overrides the header the token is sent in.
// Default is auth.DefaultHeader.
func WithTokenHeader(header string) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.TokenHeader = header
	}
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(client *http.Client) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.HTTPClient = client
	}
}

// WithTimeout bounds each API request. Default is no timeout beyond the
// caller's context.
func WithTimeout(timeout time.Duration) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithLogger sets the structured logger. Default discards all output.
func WithLogger(logger *slog.Logger) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
// Default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.TracerProvider = tp
	}
}

// WithObserver registers callbacks for upload progress.
func WithObserver(o doitypes.Observer) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.Observer = o
	}
}

// WithDescription sets the initial description of a Workflow.
func WithDescription(description string) doitypes.Option {
	return func(c *doitypes.ClientConfig) {
		c.Description = description
	}
}
