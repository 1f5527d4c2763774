package errors

import (
	"errors"
	"fmt"
)

// Error represents a workflow operation error with context about the operation that failed.
type Error struct {
	// Op is the operation that failed (e.g., "addFile", "submit", "publish")
	Op string

	// Code classifies the failure
	Code ErrorCode

	// Index is the list position the operation addressed, or -1 if not applicable
	Index int

	// Status is the HTTP status returned by the server (if applicable)
	Status int

	// Message is the user-facing message, surfaced verbatim to the caller's UI
	Message string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Status != 0:
		return fmt.Sprintf("doi.%s (status %d): %s", e.Op, e.Status, msg)
	case e.Index >= 0:
		return fmt.Sprintf("doi.%s index %d: %s", e.Op, e.Index, msg)
	default:
		return fmt.Sprintf("doi.%s: %s", e.Op, msg)
	}
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithIndex adds list position context to an existing error.
func (e *Error) WithIndex(index int) *Error {
	e.Index = index
	return e
}

// WithStatus adds the HTTP status of a failed request.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithMessage sets the user-facing message.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// NewError creates a new Error for op. The code is inferred from the sentinel err wraps.
func NewError(op string, err error) *Error {
	return &Error{
		Op:    op,
		Code:  codeFor(err),
		Index: -1,
		Err:   err,
	}
}

// NewIndexError creates a new Error with list position context.
func NewIndexError(op string, index int, err error) *Error {
	return NewError(op, err).WithIndex(index)
}

// Sentinel errors for workflow failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrQuotaExceeded indicates the maximum number of supplemental files has been reached
	ErrQuotaExceeded = errors.New("doi: supplemental file quota exceeded")

	// ErrIndexOutOfRange indicates an index does not address an existing entry
	ErrIndexOutOfRange = errors.New("doi: index out of range")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("doi: invalid input")

	// ErrInvalidConfig indicates the workflow was constructed with an unusable configuration
	ErrInvalidConfig = errors.New("doi: invalid configuration")

	// ErrAlreadyInProgress indicates a submission is already in flight
	ErrAlreadyInProgress = errors.New("doi: submission already in progress")

	// ErrAlreadySubmitted indicates the workflow already submitted successfully
	ErrAlreadySubmitted = errors.New("doi: already submitted")

	// ErrUploadFailed indicates a supplemental file transfer failed
	ErrUploadFailed = errors.New("doi: upload failed")

	// ErrSubmissionFailed indicates the submission API returned a non-2xx response
	ErrSubmissionFailed = errors.New("doi: submission failed")

	// ErrInvalidResponse indicates a 2xx response whose body could not be used
	ErrInvalidResponse = errors.New("doi: invalid server response")

	// ErrUnauthorized indicates no token could be resolved for the auth context
	ErrUnauthorized = errors.New("doi: unauthorized")
)

func codeFor(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, ErrQuotaExceeded):
		return CodeQuotaExceeded
	case errors.Is(err, ErrIndexOutOfRange):
		return CodeIndexOutOfRange
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrInvalidConfig):
		return CodeInvalidConfig
	case errors.Is(err, ErrAlreadyInProgress):
		return CodeAlreadyInProgress
	case errors.Is(err, ErrAlreadySubmitted):
		return CodeAlreadySubmitted
	case errors.Is(err, ErrUploadFailed):
		return CodeUploadFailed
	case errors.Is(err, ErrSubmissionFailed):
		return CodeSubmissionFailed
	case errors.Is(err, ErrInvalidResponse):
		return CodeInvalidResponse
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	}
	return CodeUnknown
}

// IsQuotaExceeded checks if an error indicates the file limit was reached.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsAlreadyInProgress checks if an error indicates a concurrent submission was rejected.
func IsAlreadyInProgress(err error) bool {
	return errors.Is(err, ErrAlreadyInProgress)
}

// IsInvalidResponse checks if an error came from a 2xx response that could not be used.
// The request took effect on the server, so it must not be repeated.
func IsInvalidResponse(err error) bool {
	return errors.Is(err, ErrInvalidResponse)
}

// IsSubmissionFailed checks if an error came from a rejected submission.
func IsSubmissionFailed(err error) bool {
	return errors.Is(err, ErrSubmissionFailed)
}

// UserMessage extracts the user-facing message from err, falling back to err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
