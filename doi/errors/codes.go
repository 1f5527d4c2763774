// Package errors provides error types and handling for the DOI submission workflow.
// It pairs string error codes, which serialize naturally and read well in logs,
// with an operation-scoped Error type and sentinel errors usable with errors.Is.
package errors

// ErrorCode represents a specific error condition in the DOI workflow.
type ErrorCode string

const (
	// Input errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeIndexOutOfRange indicates a positional argument does not address an existing entry.
	CodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// Capacity errors.

	// CodeQuotaExceeded indicates the supplemental file limit has been reached.
	CodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// State errors.

	// CodeAlreadyInProgress indicates a submission is already running.
	CodeAlreadyInProgress ErrorCode = "ALREADY_IN_PROGRESS"

	// CodeAlreadySubmitted indicates the workflow already completed successfully.
	CodeAlreadySubmitted ErrorCode = "ALREADY_SUBMITTED"

	// Transport errors.

	// CodeUploadFailed indicates a direct-to-storage transfer failed.
	CodeUploadFailed ErrorCode = "UPLOAD_FAILED"

	// CodeSubmissionFailed indicates the submission API rejected the request.
	CodeSubmissionFailed ErrorCode = "SUBMISSION_FAILED"

	// CodeInvalidResponse indicates the server accepted a request but its reply was unusable.
	CodeInvalidResponse ErrorCode = "INVALID_RESPONSE"

	// CodeNetwork indicates a network operation failed before a response was read.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeUnauthorized indicates no usable anti-forgery or API token could be obtained.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
