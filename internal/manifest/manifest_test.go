package manifest

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImageMarkup/isic/doi/doitypes"
)

const sample = `
collection_id: 42
description: Dermoscopic images.
files:
  - path: docs/readme.pdf
    description: Protocol
  - path: /abs/labels.csv
related_identifiers:
  - relation_type: IsDescribedBy
    identifier_type: DOI
    identifier: 10.1000/xyz
  - relation_type: IsReferencedBy
    identifier_type: URL
    identifier: https://example.org/paper
`

func TestLoad(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "/work/doi.yaml", []byte(sample), 0o644))

	m, err := Load(fsys, "/work/doi.yaml")
	require.NoError(t, err)

	assert.Equal(t, 42, m.CollectionID)
	assert.Equal(t, "Dermoscopic images.", m.Description)
	assert.Equal(t, []File{
		{Path: "/work/docs/readme.pdf", Description: "Protocol"},
		{Path: "/abs/labels.csv"},
	}, m.Files)
	assert.Equal(t, []doitypes.RelatedIdentifier{
		{RelationType: doitypes.RelationIsDescribedBy, IdentifierType: doitypes.IdentifierDOI, Identifier: "10.1000/xyz"},
		{
			RelationType:   doitypes.RelationIsReferencedBy,
			IdentifierType: doitypes.IdentifierURL,
			Identifier:     "https://example.org/paper",
		},
	}, m.RelatedIdentifiers)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(memfs.New(), "/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open manifest")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{name: "empty", doc: "", wantMsg: "empty document"},
		{name: "unknown key", doc: "collection_id: 1\nslug: x\n", wantMsg: "slug"},
		{name: "missing collection", doc: "description: x\n", wantMsg: "collection_id"},
		{name: "file without path", doc: "collection_id: 1\nfiles:\n  - description: x\n", wantMsg: "files[0]"},
		{
			name:    "too many files",
			doc:     "collection_id: 1\nfiles:\n" + strings.Repeat("  - path: a\n", 11),
			wantMsg: "at most 10 files",
		},
		{
			name:    "unknown relation",
			doc:     "collection_id: 1\nrelated_identifiers:\n  - relation_type: Cites\n",
			wantMsg: `unknown relation type "Cites"`,
		},
		{
			name:    "unknown identifier type",
			doc:     "collection_id: 1\nrelated_identifiers:\n  - relation_type: IsReferencedBy\n    identifier_type: ISBN\n",
			wantMsg: `unknown identifier type "ISBN"`,
		},
		{
			name: "duplicate unique relation",
			doc: "collection_id: 1\nrelated_identifiers:\n" +
				"  - relation_type: IsDescribedBy\n  - relation_type: IsDescribedBy\n",
			wantMsg: "only one IsDescribedBy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
