// Package manifest loads the YAML description of a DOI to create.
//
//	collection_id: 42
//	description: Dermoscopic images collected in 2024.
//	files:
//	  - path: data/readme.pdf
//	    description: Acquisition protocol
//	related_identifiers:
//	  - relation_type: IsDescribedBy
//	    identifier_type: DOI
//	    identifier: 10.1000/xyz
//
// Relative file paths are resolved against the manifest's directory.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/go-git/go-billy/v5"
	"gopkg.in/yaml.v3"

	"github.com/ImageMarkup/isic/doi"
	"github.com/ImageMarkup/isic/doi/doitypes"
)

// File is a supplemental file entry.
type File struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

// Manifest describes one DOI.
type Manifest struct {
	CollectionID       int                          `yaml:"collection_id"`
	Description        string                       `yaml:"description"`
	Files              []File                       `yaml:"files"`
	RelatedIdentifiers []doitypes.RelatedIdentifier `yaml:"related_identifiers"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid manifest")

// Parse decodes a manifest. Unknown keys are rejected.
func Parse(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and validates the manifest at p, resolving relative file paths
// against its directory.
func Load(fsys billy.Filesystem, p string) (*Manifest, error) {
	f, err := fsys.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	dir := path.Dir(p)
	for i := range m.Files {
		if !path.IsAbs(m.Files[i].Path) {
			m.Files[i].Path = path.Join(dir, m.Files[i].Path)
		}
	}
	return m, nil
}

// Validate checks limits and relation types.
func (m *Manifest) Validate() error {
	if m.CollectionID <= 0 {
		return fmt.Errorf("%w: collection_id must be a positive integer", ErrInvalid)
	}
	if len(m.Files) > doitypes.MaxSupplementalFiles {
		return fmt.Errorf("%w: at most %d files are allowed, got %d",
			ErrInvalid, doitypes.MaxSupplementalFiles, len(m.Files))
	}
	for i, f := range m.Files {
		if f.Path == "" {
			return fmt.Errorf("%w: files[%d]: path is required", ErrInvalid, i)
		}
	}

	known := map[doitypes.RelationType]bool{}
	for _, rt := range doi.RelationTypes() {
		known[rt.Type] = rt.Unique
	}
	seen := map[doitypes.RelationType]int{}
	for i, ri := range m.RelatedIdentifiers {
		unique, ok := known[ri.RelationType]
		if !ok {
			return fmt.Errorf("%w: related_identifiers[%d]: unknown relation type %q", ErrInvalid, i, ri.RelationType)
		}
		if !ri.IdentifierType.Valid() {
			return fmt.Errorf("%w: related_identifiers[%d]: unknown identifier type %q",
				ErrInvalid, i, ri.IdentifierType)
		}
		seen[ri.RelationType]++
		if unique && seen[ri.RelationType] > 1 {
			return fmt.Errorf("%w: related_identifiers[%d]: only one %s entry is allowed",
				ErrInvalid, i, ri.RelationType)
		}
	}
	return nil
}
