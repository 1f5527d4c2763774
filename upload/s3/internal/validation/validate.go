// Package validation checks bucket names, object keys and metadata before they
// are sent to S3.
package validation

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/ImageMarkup/isic/upload/s3/errors"
)

// MaxKeyLength is the longest object key S3 accepts, in bytes.
const MaxKeyLength = 1024

var mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)

// ValidateBucketName reports whether bucket follows the S3 naming rules.
func ValidateBucketName(bucket string) error {
	fail := func(msg string) error {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage(msg)
	}

	if len(bucket) < 3 || len(bucket) > 63 {
		return fail("bucket name must be between 3 and 63 characters long")
	}
	for _, c := range bucket {
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '.' && c != '-' {
			return fail("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	first, last := bucket[0], bucket[len(bucket)-1]
	if !isAlnum(first) || !isAlnum(last) {
		return fail("bucket name must start and end with a letter or number")
	}
	if strings.Contains(bucket, "..") || strings.Contains(bucket, ".-") || strings.Contains(bucket, "-.") {
		return fail("bucket name cannot contain adjacent dots or a dot next to a hyphen")
	}
	if looksLikeIPv4(bucket) {
		return fail("bucket name cannot be formatted as an IP address")
	}
	if strings.HasPrefix(bucket, "xn--") || strings.HasSuffix(bucket, "-s3alias") {
		return fail("bucket name uses a reserved prefix or suffix")
	}
	return nil
}

// ValidateObjectKey rejects empty, oversized and traversing keys, and keys with
// control characters.
func ValidateObjectKey(key string) error {
	fail := func(msg string) error {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage(msg)
	}

	switch {
	case key == "":
		return fail("object key cannot be empty")
	case len(key) > MaxKeyLength:
		return fail("object key cannot exceed 1024 bytes")
	case strings.HasPrefix(key, "/"):
		return fail("object key cannot be absolute")
	case hasTraversal(key):
		return fail("object key cannot contain path traversal sequences")
	}
	for _, c := range key {
		if unicode.IsControl(c) {
			return fail("object key cannot contain control characters")
		}
	}
	return nil
}

// ValidateContentType accepts an empty value or a well-formed MIME type.
func ValidateContentType(contentType string) error {
	if contentType == "" || mimePattern.MatchString(contentType) {
		return nil
	}
	return errors.NewError("validateContentType", errors.ErrInvalidInput).
		WithMessage("content type must be a valid MIME type")
}

// SanitizeKeySegment turns an arbitrary file name into a safe single key segment.
func SanitizeKeySegment(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case r == '/' || r == '\\':
			return '_'
		}
		return r
	}, name)

	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

// SanitizeMetadata drops non-printable characters from metadata keys and values.
// S3 only transmits ASCII in user metadata headers, so other runes are dropped too.
func SanitizeMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	keep := func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return -1
		}
		return r
	}

	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		k = strings.ToLower(strings.Map(keep, k))
		if k == "" {
			continue
		}
		out[k] = strings.Map(keep, v)
	}
	return out
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func looksLikeIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

func hasTraversal(key string) bool {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return true
		}
	}
	return strings.HasPrefix(path.Clean(key), "..")
}
