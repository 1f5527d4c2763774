// Package registry keeps the related identifiers of a DOI in three ordered
// sequences, one per relation type.
package registry

import (
	"fmt"
	"sync"

	"github.com/ImageMarkup/isic/doi/doitypes"
	doierrors "github.com/ImageMarkup/isic/doi/errors"
)

const (
	helpBaseURL = "https://datacite-metadata-schema.readthedocs.io/en/4.6/appendices/appendix-1/relationType/"
	doiExample  = "10.7910/DVN.DBW86T"
	urlExample  = "https://github.com/username/repo"
)

var relationTypes = []doitypes.RelationTypeConfig{
	{
		Type:         doitypes.RelationIsDescribedBy,
		Title:        "Data Descriptor Publication",
		Description:  "A single publication that authoritatively describes this dataset.",
		Examples:     "Nature Scientific Data article",
		ButtonText:   "Add Descriptor",
		EmptyMessage: "No descriptor added yet",
		HelpURL:      helpBaseURL + "#isdescribedby",
		DOIExample:   doiExample,
		URLExample:   urlExample,
		Unique:       true,
	},
	{
		Type:         doitypes.RelationIsSupplementedBy,
		Title:        "External Supplemental Materials",
		Description:  "External resources that provide supplemental material for this dataset.",
		Examples:     "Figshare, GitHub Repositories",
		ButtonText:   "Add Supplement",
		EmptyMessage: "No supplements added yet",
		HelpURL:      helpBaseURL + "#issupplementedby",
		DOIExample:   doiExample,
		URLExample:   urlExample,
	},
	{
		Type:         doitypes.RelationIsReferencedBy,
		Title:        "Inbound References",
		Description:  "Publications, articles, or other works that cite or reference this dataset.<br />A mirror of this dataset.",
		Examples:     "Nature article, Harvard Dataverse, Kaggle",
		ButtonText:   "Add Reference",
		EmptyMessage: "No references added yet",
		HelpURL:      helpBaseURL + "#isreferencedby",
		DOIExample:   doiExample,
		URLExample:   urlExample,
	},
}

// RelationTypes returns the supported relation types in submission order.
func RelationTypes() []doitypes.RelationTypeConfig {
	return append([]doitypes.RelationTypeConfig(nil), relationTypes...)
}

// Lookup returns the configuration of rt.
func Lookup(rt doitypes.RelationType) (doitypes.RelationTypeConfig, bool) {
	for _, cfg := range relationTypes {
		if cfg.Type == rt {
			return cfg, true
		}
	}
	return doitypes.RelationTypeConfig{}, false
}

// Placeholder returns the input hint for an identifier of type t.
func Placeholder(t doitypes.IdentifierType) string {
	return relationTypes[0].Placeholder(t)
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[doitypes.RelationType][]doitypes.RelatedIdentifier
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[doitypes.RelationType][]doitypes.RelatedIdentifier, len(relationTypes)),
	}
}

// Add appends an empty entry for rt. For a unique relation type that already has
// an entry it does nothing and reports false.
func (r *Registry) Add(rt doitypes.RelationType) (bool, error) {
	cfg, ok := Lookup(rt)
	if !ok {
		return false, unknownRelation("addRelatedIdentifier", rt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.Unique && len(r.entries[rt]) > 0 {
		return false, nil
	}
	r.entries[rt] = append(r.entries[rt], doitypes.RelatedIdentifier{RelationType: rt})
	return true, nil
}

// Remove deletes the entry at index from the sequence of rt.
func (r *Registry) Remove(rt doitypes.RelationType, index int) error {
	if _, ok := Lookup(rt); !ok {
		return unknownRelation("removeRelatedIdentifier", rt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[rt]
	if index < 0 || index >= len(list) {
		return doierrors.NewIndexError("removeRelatedIdentifier", index, doierrors.ErrIndexOutOfRange)
	}
	r.entries[rt] = append(list[:index], list[index+1:]...)
	return nil
}

// Set replaces the identifier type and value of the entry at index.
func (r *Registry) Set(rt doitypes.RelationType, index int, t doitypes.IdentifierType, value string) error {
	if _, ok := Lookup(rt); !ok {
		return unknownRelation("setRelatedIdentifier", rt)
	}
	if !t.Valid() {
		return doierrors.NewIndexError("setRelatedIdentifier", index, doierrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("unsupported identifier type %q", t))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[rt]
	if index < 0 || index >= len(list) {
		return doierrors.NewIndexError("setRelatedIdentifier", index, doierrors.ErrIndexOutOfRange)
	}
	list[index].IdentifierType = t
	list[index].Identifier = value
	return nil
}

// List returns a copy of the sequence of rt.
func (r *Registry) List(rt doitypes.RelationType) []doitypes.RelatedIdentifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]doitypes.RelatedIdentifier{}, r.entries[rt]...)
}

// Flatten concatenates every sequence in relation type order, keeping insertion
// order within a type.
func (r *Registry) Flatten() []doitypes.RelatedIdentifier {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []doitypes.RelatedIdentifier
	for _, cfg := range relationTypes {
		out = append(out, r.entries[cfg.Type]...)
	}
	return out
}

// Len returns the total number of entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, list := range r.entries {
		n += len(list)
	}
	return n
}

func unknownRelation(op string, rt doitypes.RelationType) error {
	return doierrors.NewError(op, doierrors.ErrInvalidInput).
		WithMessage(fmt.Sprintf("unknown relation type %q", rt))
}
