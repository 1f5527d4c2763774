package submission

import (
	"github.com/ImageMarkup/isic/doi/doitypes"
)

// SupplementalFile is one uploaded file in the request body.
type SupplementalFile struct {
	Blob        string `json:"blob"`
	Description string `json:"description"`
}

// Payload is the body of a DOI creation request.
type Payload struct {
	CollectionID int `json:"collection_id"`

	// Description is only sent by the full workflow, which always sends it
	Description *string `json:"description,omitempty"`

	SupplementalFiles  []SupplementalFile           `json:"supplemental_files"`
	RelatedIdentifiers []doitypes.RelatedIdentifier `json:"related_identifiers,omitempty"`
}

// BuildPayload assembles a request body. Files without an upload handle are left
// out; the order of files is preserved. description nil omits the field.
func BuildPayload(
	collectionID int,
	description *string,
	files []doitypes.SelectedFile,
	related []doitypes.RelatedIdentifier,
) Payload {
	p := Payload{
		CollectionID:      collectionID,
		Description:       description,
		SupplementalFiles: make([]SupplementalFile, 0, len(files)),
	}

	for _, f := range files {
		if f.Handle == nil {
			continue
		}
		p.SupplementalFiles = append(p.SupplementalFiles, SupplementalFile{
			Blob:        f.Handle.Value,
			Description: f.Description,
		})
	}

	if len(related) > 0 {
		p.RelatedIdentifiers = append([]doitypes.RelatedIdentifier(nil), related...)
	}
	return p
}
