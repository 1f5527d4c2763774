// Package errors provides error types for the S3 upload backend.
package errors

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Error represents a failed S3 upload step with the bucket and key it addressed.
type Error struct {
	// Op is the step that failed (e.g., "putObject", "uploadPart")
	Op string

	// Bucket is the target bucket (if applicable)
	Bucket string

	// Key is the target object key (if applicable)
	Key string

	// Message adds context to Err
	Message string

	// Err is the underlying error from the AWS SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}

	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("s3.%s %s/%s: %s", e.Op, e.Bucket, e.Key, msg)
	case e.Bucket != "":
		return fmt.Sprintf("s3.%s bucket %s: %s", e.Op, e.Bucket, msg)
	case e.Key != "":
		return fmt.Sprintf("s3.%s object %s: %s", e.Op, e.Key, msg)
	}
	return fmt.Sprintf("s3.%s: %s", e.Op, msg)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage adds a message to the error.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// NewError creates an Error for op. AWS API errors with a known code are
// mapped to the matching sentinel so errors.Is works on them.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: classify(err)}
}

// Sentinel errors for upload failures.
var (
	// ErrInvalidBucketName indicates the configured bucket is not a valid S3 bucket name
	ErrInvalidBucketName = errors.New("s3: invalid bucket name")

	// ErrInvalidObjectKey indicates a generated or configured object key is invalid
	ErrInvalidObjectKey = errors.New("s3: invalid object key")

	// ErrInvalidInput indicates invalid upload parameters
	ErrInvalidInput = errors.New("s3: invalid input")

	// ErrAccessDenied indicates the credentials may not write to the bucket
	ErrAccessDenied = errors.New("s3: access denied")

	// ErrBucketNotFound indicates the bucket does not exist
	ErrBucketNotFound = errors.New("s3: bucket not found")

	// ErrEntityTooLarge indicates the object or a part exceeds S3 limits
	ErrEntityTooLarge = errors.New("s3: entity too large")
)

var apiErrorCodes = map[string]error{
	"AccessDenied":   ErrAccessDenied,
	"NoSuchBucket":   ErrBucketNotFound,
	"EntityTooLarge": ErrEntityTooLarge,
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if sentinel, ok := apiErrorCodes[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
	}
	return err
}

// IsAccessDenied checks if an error indicates missing permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsBucketNotFound checks if an error indicates a missing bucket.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}
