package doi

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/ImageMarkup/isic/doi/doitypes"
	doierrors "github.com/ImageMarkup/isic/doi/errors"
	"github.com/ImageMarkup/isic/doi/internal/registry"
	"github.com/ImageMarkup/isic/doi/internal/submission"
)

// Workflow is the full DOI creation form: the supplemental files of Uploader plus
// a description and the related identifiers.
type Workflow struct {
	*Uploader

	registry *registry.Registry

	mu          sync.Mutex
	description string
}

// New creates the full workflow.
func New(ctx context.Context, opts ...doitypes.Option) (*Workflow, error) {
	cfg := newConfig(opts...)
	u, err := newUploader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Workflow{
		Uploader:    u,
		registry:    registry.New(),
		description: cfg.Description,
	}, nil
}

// SetDescription replaces the free-text description.
func (w *Workflow) SetDescription(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.description = text
}

// Description returns the free-text description.
func (w *Workflow) Description() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.description
}

// AddRelatedIdentifier appends an empty identifier for rt. Adding a second
// data descriptor is ignored and reports false.
func (w *Workflow) AddRelatedIdentifier(rt doitypes.RelationType) (bool, error) {
	added, err := w.registry.Add(rt)
	if err == nil && !added {
		w.logger.Debug("related identifier not added, relation type is unique", "relation_type", string(rt))
	}
	return added, err
}

// RemoveRelatedIdentifier removes the identifier at index from the list of rt.
func (w *Workflow) RemoveRelatedIdentifier(rt doitypes.RelationType, index int) error {
	return w.registry.Remove(rt, index)
}

// SetRelatedIdentifier sets the type and value of the identifier at index.
func (w *Workflow) SetRelatedIdentifier(
	rt doitypes.RelationType,
	index int,
	t doitypes.IdentifierType,
	value string,
) error {
	return w.registry.Set(rt, index, t, value)
}

// RelatedIdentifiers returns the identifiers of rt in insertion order.
func (w *Workflow) RelatedIdentifiers(rt doitypes.RelationType) []doitypes.RelatedIdentifier {
	return w.registry.List(rt)
}

// AllRelatedIdentifiers returns every identifier in submission order.
func (w *Workflow) AllRelatedIdentifiers() []doitypes.RelatedIdentifier {
	return w.registry.Flatten()
}

// Placeholder returns the input hint for an identifier of type t.
func (w *Workflow) Placeholder(t doitypes.IdentifierType) string {
	return registry.Placeholder(t)
}

// Submit creates a draft DOI for collectionID from the uploaded files, the
// description and the related identifiers. On success the redirect leads to the
// draft DOI page.
func (w *Workflow) Submit(ctx context.Context, collectionID int) (*doitypes.Result, error) {
	description := w.Description()
	return w.submit(ctx, collectionID, &description, w.registry.Flatten(), func(_ int, slug string) (string, error) {
		if slug == "" {
			return "", doierrors.NewError("submit", fmt.Errorf("%w: response has no slug", doierrors.ErrInvalidResponse)).
				WithMessage(submission.MalformedResponse)
		}
		return "/doi/" + url.PathEscape(slug), nil
	})
}
