package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImageMarkup/isic/doi/doitypes"
	doierrors "github.com/ImageMarkup/isic/doi/errors"
)

func TestRelationTypes(t *testing.T) {
	types := RelationTypes()
	require.Len(t, types, 3)
	assert.Equal(t, doitypes.RelationIsDescribedBy, types[0].Type)
	assert.Equal(t, doitypes.RelationIsSupplementedBy, types[1].Type)
	assert.Equal(t, doitypes.RelationIsReferencedBy, types[2].Type)

	assert.True(t, types[0].Unique)
	assert.False(t, types[1].Unique)
	assert.False(t, types[2].Unique)
	assert.Equal(t, "Add Descriptor", types[0].ButtonText)
	assert.Contains(t, types[2].HelpURL, "#isreferencedby")

	// Returned slice is a copy.
	types[0].Title = "changed"
	assert.Equal(t, "Data Descriptor Publication", RelationTypes()[0].Title)
}

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		t    doitypes.IdentifierType
		want string
	}{
		{name: "doi", t: doitypes.IdentifierDOI, want: "e.g., 10.7910/DVN.DBW86T"},
		{name: "url", t: doitypes.IdentifierURL, want: "e.g., https://github.com/username/repo"},
		{name: "unset", t: doitypes.IdentifierUnset, want: "Select type first"},
		{name: "unknown", t: "ISBN", want: "Select type first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Placeholder(tt.t))
		})
	}
}

func TestRegistry_AddUniqueIsSilent(t *testing.T) {
	r := New()

	added, err := r.Add(doitypes.RelationIsDescribedBy)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.Add(doitypes.RelationIsDescribedBy)
	require.NoError(t, err)
	assert.False(t, added)

	assert.Len(t, r.List(doitypes.RelationIsDescribedBy), 1)

	for i := 0; i < 3; i++ {
		added, err = r.Add(doitypes.RelationIsReferencedBy)
		require.NoError(t, err)
		assert.True(t, added)
	}
	assert.Len(t, r.List(doitypes.RelationIsReferencedBy), 3)
	assert.Equal(t, 4, r.Len())
}

func TestRegistry_AddCreatesEmptyEntry(t *testing.T) {
	r := New()
	_, err := r.Add(doitypes.RelationIsSupplementedBy)
	require.NoError(t, err)

	assert.Equal(t, []doitypes.RelatedIdentifier{
		{RelationType: doitypes.RelationIsSupplementedBy},
	}, r.List(doitypes.RelationIsSupplementedBy))
}

func TestRegistry_UnknownRelationType(t *testing.T) {
	r := New()

	_, err := r.Add("IsCitedBy")
	assert.ErrorIs(t, err, doierrors.ErrInvalidInput)
	assert.ErrorIs(t, r.Remove("IsCitedBy", 0), doierrors.ErrInvalidInput)
	assert.ErrorIs(t, r.Set("IsCitedBy", 0, doitypes.IdentifierDOI, "x"), doierrors.ErrInvalidInput)
	assert.Zero(t, r.Len())
}

func TestRegistry_RemoveAndSet(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		_, err := r.Add(doitypes.RelationIsSupplementedBy)
		require.NoError(t, err)
	}

	require.NoError(t, r.Set(doitypes.RelationIsSupplementedBy, 0, doitypes.IdentifierURL, "https://a"))
	require.NoError(t, r.Set(doitypes.RelationIsSupplementedBy, 1, doitypes.IdentifierDOI, "10.1/b"))
	require.NoError(t, r.Set(doitypes.RelationIsSupplementedBy, 2, doitypes.IdentifierURL, "https://c"))

	require.NoError(t, r.Remove(doitypes.RelationIsSupplementedBy, 1))
	list := r.List(doitypes.RelationIsSupplementedBy)
	require.Len(t, list, 2)
	assert.Equal(t, "https://a", list[0].Identifier)
	assert.Equal(t, "https://c", list[1].Identifier)

	err := r.Remove(doitypes.RelationIsSupplementedBy, 2)
	assert.ErrorIs(t, err, doierrors.ErrIndexOutOfRange)
	err = r.Remove(doitypes.RelationIsDescribedBy, 0)
	assert.ErrorIs(t, err, doierrors.ErrIndexOutOfRange)
	err = r.Set(doitypes.RelationIsSupplementedBy, -1, doitypes.IdentifierURL, "x")
	assert.ErrorIs(t, err, doierrors.ErrIndexOutOfRange)

	err = r.Set(doitypes.RelationIsSupplementedBy, 0, "ISBN", "x")
	assert.ErrorIs(t, err, doierrors.ErrInvalidInput)
	assert.Equal(t, "https://a", r.List(doitypes.RelationIsSupplementedBy)[0].Identifier)
}

func TestRegistry_FlattenOrder(t *testing.T) {
	r := New()
	_, _ = r.Add(doitypes.RelationIsReferencedBy)
	_, _ = r.Add(doitypes.RelationIsSupplementedBy)
	_, _ = r.Add(doitypes.RelationIsReferencedBy)
	_, _ = r.Add(doitypes.RelationIsDescribedBy)

	require.NoError(t, r.Set(doitypes.RelationIsReferencedBy, 0, doitypes.IdentifierURL, "ref-1"))
	require.NoError(t, r.Set(doitypes.RelationIsReferencedBy, 1, doitypes.IdentifierURL, "ref-2"))

	flat := r.Flatten()
	require.Len(t, flat, 4)
	assert.Equal(t, doitypes.RelationIsDescribedBy, flat[0].RelationType)
	assert.Equal(t, doitypes.RelationIsSupplementedBy, flat[1].RelationType)
	assert.Equal(t, "ref-1", flat[2].Identifier)
	assert.Equal(t, "ref-2", flat[3].Identifier)

	assert.Empty(t, New().Flatten())
}
