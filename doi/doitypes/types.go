// Package doitypes provides shared type definitions for the DOI workflow.
package doitypes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/ImageMarkup/isic/auth"
	"github.com/ImageMarkup/isic/upload"
)

// MaxSupplementalFiles is the fixed number of supplemental files a DOI may carry.
const MaxSupplementalFiles = 10

// RelationType is the DataCite relation between the dataset and a related record.
type RelationType string

// Supported relation types, in submission order.
const (
	// RelationIsDescribedBy points at the single data descriptor publication
	RelationIsDescribedBy RelationType = "IsDescribedBy"

	// RelationIsSupplementedBy points at external supplemental material
	RelationIsSupplementedBy RelationType = "IsSupplementedBy"

	// RelationIsReferencedBy points at works citing or mirroring the dataset
	RelationIsReferencedBy RelationType = "IsReferencedBy"
)

// IdentifierType is the scheme of a related identifier.
type IdentifierType string

// Supported identifier types. The zero value means "not selected yet".
const (
	IdentifierUnset IdentifierType = ""
	IdentifierDOI   IdentifierType = "DOI"
	IdentifierURL   IdentifierType = "URL"
)

// Valid reports whether t is a known identifier type or unset.
func (t IdentifierType) Valid() bool {
	switch t {
	case IdentifierUnset, IdentifierDOI, IdentifierURL:
		return true
	}
	return false
}

// RelatedIdentifier is a cross-reference from the dataset to an external record.
type RelatedIdentifier struct {
	RelationType   RelationType   `json:"relation_type" yaml:"relation_type"`
	IdentifierType IdentifierType `json:"related_identifier_type" yaml:"identifier_type"`
	Identifier     string         `json:"related_identifier" yaml:"identifier"`
}

// RelationTypeConfig carries the display metadata for one relation type.
type RelationTypeConfig struct {
	Type         RelationType
	Title        string
	Description  string
	Examples     string
	ButtonText   string
	EmptyMessage string
	HelpURL      string
	DOIExample   string
	URLExample   string

	// Unique limits the relation type to a single entry
	Unique bool
}

// Placeholder returns the input hint for an identifier of type t.
func (c RelationTypeConfig) Placeholder(t IdentifierType) string {
	switch t {
	case IdentifierDOI:
		return "e.g., " + c.DOIExample
	case IdentifierURL:
		return "e.g., " + c.URLExample
	}
	return "Select type first"
}

// SelectedFile is a snapshot of one file chosen for upload.
type SelectedFile struct {
	// ID is the stable identity of the file for the lifetime of the workflow
	ID uuid.UUID

	Name        string
	Size        int64
	ContentType string
	Description string

	// Handle is set once the upload completed, nil while pending or after a failure
	Handle *upload.Handle

	// Err is the upload failure, if any
	Err error
}

// Pending reports whether the upload has not resolved yet.
func (f SelectedFile) Pending() bool {
	return f.Handle == nil && f.Err == nil
}

// State is the submission state of a workflow.
type State int

// Workflow states.
const (
	StateIdle State = iota
	StateUploadsInFlight
	StateSubmitting
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploadsInFlight:
		return "uploads-in-flight"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	}
	return "unknown"
}

// Result is the outcome of a successful submission.
type Result struct {
	// Slug identifies the created draft DOI (full workflow only)
	Slug string

	// RedirectURL is the page the caller should navigate to
	RedirectURL string

	// Files is the number of supplemental files included in the payload
	Files int

	// Duration is how long the submission request took
	Duration time.Duration
}

// Observer receives upload lifecycle notifications.
// Callbacks run on the upload goroutine and must not block.
type Observer interface {
	// Started is called after a file was accepted and its transfer begins
	Started(file SelectedFile)

	// Completed is called when the transfer finished and the handle was stored
	Completed(file SelectedFile)

	// Failed is called when the transfer failed
	Failed(file SelectedFile, err error)
}

// Configuration types for functional options

// ClientConfig holds configuration for a workflow.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://api.isic-archive.com/api/v2/
	BaseURL string

	// UploadClient performs direct-to-storage transfers
	UploadClient upload.Client

	// TokenSource supplies the anti-forgery token, resolved once at construction
	TokenSource auth.TokenSource

	// TokenHeader is the header the token is sent in
	TokenHeader string

	HTTPClient     *http.Client
	Timeout        time.Duration
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	Observer       Observer

	// Description is the initial free-text description (full workflow only)
	Description string
}

// Option is a functional option for configuring a workflow.
type Option func(*ClientConfig)
