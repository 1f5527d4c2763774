// Package upload defines the direct-to-storage upload contract used by the DOI
// workflow, along with file sources that can be handed to it.
//
// Implementations live in sub-packages:
//   - fieldfile: the presigned s3-file-field protocol served by the archive API
//   - s3: direct uploads to an AWS S3 bucket
//   - minio: direct uploads to an S3-compatible MinIO deployment
//
// Every implementation transfers one file per call and returns an opaque Handle
// once the transfer completes. The handle value is embedded verbatim in the
// submission payload.
package upload

import (
	"context"
	"io"
)

// FieldSupplementalFile is the logical field under which supplemental files are uploaded.
const FieldSupplementalFile = "core.SupplementalFile.blob"

// Handle is the opaque result of a completed transfer.
type Handle struct {
	// Value is the token the submission API accepts for the uploaded object.
	Value string

	// Key is the storage object key, when the backend exposes it.
	Key string
}

// File is a single file pending upload.
type File interface {
	// Name is the base name of the file, used for the object key and display.
	Name() string

	// Size is the file size in bytes.
	Size() int64

	// ContentType is the detected MIME type.
	ContentType() string

	// Open returns a fresh reader over the file contents.
	Open() (io.ReadCloser, error)
}

// Client transfers a file to storage under a logical field name.
type Client interface {
	Upload(ctx context.Context, file File, field string) (Handle, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, file File, field string) (Handle, error)

// Upload calls f.
func (f ClientFunc) Upload(ctx context.Context, file File, field string) (Handle, error) {
	return f(ctx, file, field)
}
