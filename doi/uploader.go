package doi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/ImageMarkup/isic/auth"
	"github.com/ImageMarkup/isic/doi/doitypes"
	doierrors "github.com/ImageMarkup/isic/doi/errors"
	"github.com/ImageMarkup/isic/doi/internal/submission"
	"github.com/ImageMarkup/isic/doi/internal/tracker"
	"github.com/ImageMarkup/isic/upload"
)

const instrumentationName = "github.com/ImageMarkup/isic/doi"

// Uploader collects supplemental files for a collection and submits them.
// It is safe for concurrent use.
type Uploader struct {
	logger    *slog.Logger
	tracker   *tracker.Tracker
	submitter *submission.Client

	mu     sync.Mutex
	state  doitypes.State
	errMsg string
	result *doitypes.Result
}

// redirectFunc builds the page a successful submission leads to.
type redirectFunc func(collectionID int, slug string) (string, error)

// NewUploader creates the minimal workflow. The anti-forgery token is resolved
// once, here.
func NewUploader(ctx context.Context, opts ...doitypes.Option) (*Uploader, error) {
	cfg := newConfig(opts...)
	return newUploader(ctx, cfg)
}

func newConfig(opts ...doitypes.Option) *doitypes.ClientConfig {
	cfg := &doitypes.ClientConfig{
		BaseURL:     DefaultBaseURL,
		TokenHeader: auth.DefaultHeader,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func newUploader(ctx context.Context, cfg *doitypes.ClientConfig) (*Uploader, error) {
	if cfg.UploadClient == nil {
		return nil, doierrors.NewError("new", doierrors.ErrInvalidConfig).
			WithMessage("upload client is required")
	}
	if cfg.TokenSource == nil {
		return nil, doierrors.NewError("new", doierrors.ErrInvalidConfig).
			WithMessage("token source is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName)

	authCtx, err := auth.Resolve(ctx, cfg.TokenSource, cfg.TokenHeader)
	if err != nil {
		return nil, doierrors.NewError("new", errors.Join(doierrors.ErrUnauthorized, err)).
			WithMessage("could not obtain an anti-forgery token")
	}

	tr, err := tracker.New(tracker.Config{
		Client:   cfg.UploadClient,
		Logger:   logger,
		Tracer:   tracer,
		Observer: cfg.Observer,
	})
	if err != nil {
		return nil, err
	}

	sub, err := submission.New(submission.Config{
		BaseURL:    cfg.BaseURL,
		HTTPClient: httpClient(cfg),
		Auth:       authCtx,
		Logger:     logger,
		Tracer:     tracer,
	})
	if err != nil {
		return nil, err
	}

	return &Uploader{
		logger:    logger,
		tracker:   tr,
		submitter: sub,
	}, nil
}

// httpClient applies the configured timeout without mutating a caller's client.
func httpClient(cfg *doitypes.ClientConfig) *http.Client {
	if cfg.HTTPClient == nil {
		return &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Timeout == 0 {
		return cfg.HTTPClient
	}
	c := *cfg.HTTPClient
	c.Timeout = cfg.Timeout
	return &c
}

// AddFile selects file and starts uploading it. It fails with ErrQuotaExceeded
// once MaxSupplementalFiles files are selected. ctx governs the transfer.
func (u *Uploader) AddFile(ctx context.Context, file upload.File) (uuid.UUID, error) {
	id, err := u.tracker.Add(ctx, file)
	if err != nil {
		if doierrors.IsQuotaExceeded(err) {
			u.logger.Warn("supplemental file rejected", "name", file.Name(), "reason", doierrors.UserMessage(err))
		}
		return uuid.Nil, err
	}
	return id, nil
}

// RemoveFile removes the file at index along with its description and handle.
func (u *Uploader) RemoveFile(index int) error {
	return u.tracker.Remove(index)
}

// RemoveFileByID removes the file with the given identity.
func (u *Uploader) RemoveFileByID(id uuid.UUID) error {
	return u.tracker.RemoveByID(id)
}

// SetFileDescription sets the description of the file at index.
func (u *Uploader) SetFileDescription(index int, text string) error {
	return u.tracker.SetDescription(index, text)
}

// Files returns a snapshot of the selected files in order.
func (u *Uploader) Files() []doitypes.SelectedFile {
	return u.tracker.Snapshot()
}

// FileCount returns the number of selected files.
func (u *Uploader) FileCount() int {
	return u.tracker.Len()
}

// InFlight returns the number of uploads still running.
func (u *Uploader) InFlight() int {
	return u.tracker.InFlight()
}

// WaitUploads blocks until every upload resolved and returns the failures of
// the files still selected.
func (u *Uploader) WaitUploads(ctx context.Context) error {
	return u.tracker.Wait(ctx)
}

// State reports where the workflow is in its lifecycle.
func (u *Uploader) State() doitypes.State {
	u.mu.Lock()
	state := u.state
	u.mu.Unlock()

	if state == doitypes.StateIdle && u.tracker.InFlight() > 0 {
		return doitypes.StateUploadsInFlight
	}
	return state
}

// ErrorMessage returns the user-facing message of the last failed submission.
// It is cleared when a new submission starts.
func (u *Uploader) ErrorMessage() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.errMsg
}

// Result returns the outcome of the successful submission, or nil.
func (u *Uploader) Result() *doitypes.Result {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.result == nil {
		return nil
	}
	r := *u.result
	return &r
}

// Submit sends the uploaded files for collectionID. Files whose upload has not
// completed are left out. On success the redirect leads back to the collection.
func (u *Uploader) Submit(ctx context.Context, collectionID int) (*doitypes.Result, error) {
	return u.submit(ctx, collectionID, nil, nil, func(id int, _ string) (string, error) {
		return fmt.Sprintf("/collections/%d/", id), nil
	})
}

// UpdateDescription replaces the description of the draft DOI slug.
func (u *Uploader) UpdateDescription(ctx context.Context, slug, description string) error {
	return u.submitter.UpdateDescription(ctx, slug, description)
}

// Publish starts publication of the draft DOI slug.
func (u *Uploader) Publish(ctx context.Context, slug string) error {
	return u.submitter.Publish(ctx, slug)
}

func (u *Uploader) submit(
	ctx context.Context,
	collectionID int,
	description *string,
	related []doitypes.RelatedIdentifier,
	redirect redirectFunc,
) (*doitypes.Result, error) {
	u.mu.Lock()
	switch u.state {
	case doitypes.StateSubmitting:
		u.mu.Unlock()
		return nil, doierrors.NewError("submit", doierrors.ErrAlreadyInProgress).
			WithMessage("A submission is already in progress.")
	case doitypes.StateSucceeded:
		u.mu.Unlock()
		return nil, doierrors.NewError("submit", doierrors.ErrAlreadySubmitted).
			WithMessage("This DOI has already been created.")
	}
	u.state = doitypes.StateSubmitting
	u.errMsg = ""
	u.mu.Unlock()

	if n := u.tracker.InFlight(); n > 0 {
		u.logger.Warn("submitting while uploads are in flight", "collection_id", collectionID, "in_flight", n)
	}

	payload := submission.BuildPayload(collectionID, description, u.tracker.Snapshot(), related)
	resp, err := u.submitter.Submit(ctx, payload)

	u.mu.Lock()
	defer u.mu.Unlock()

	if err == nil {
		var target string
		if target, err = redirect(collectionID, resp.Slug); err == nil {
			u.state = doitypes.StateSucceeded
			u.result = &doitypes.Result{
				Slug:        resp.Slug,
				RedirectURL: target,
				Files:       len(payload.SupplementalFiles),
				Duration:    resp.Duration,
			}
			r := *u.result
			return &r, nil
		}
	}

	u.errMsg = doierrors.UserMessage(err)
	if doierrors.IsInvalidResponse(err) {
		// The DOI exists server side, so Submit stays disarmed.
		u.state = doitypes.StateSucceeded
		u.logger.Error("DOI created but response unusable", "collection_id", collectionID, "error", err)
		return nil, err
	}
	u.state = doitypes.StateIdle
	return nil, err
}
