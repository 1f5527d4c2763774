package secrets

import "errors"

// Typed errors. Messages never include secret names or values.
var (
	// ErrSecretNotFound is returned when the secret does not exist
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretEmpty is returned when the secret, or the selected JSON field, has no value
	ErrSecretEmpty = errors.New("secret value is empty")

	// ErrAccessDenied is returned when the credentials may not read the secret
	ErrAccessDenied = errors.New("access denied to secret")

	// ErrInvalidSecret is returned when a JSON field was requested but the secret is not a JSON object
	ErrInvalidSecret = errors.New("secret is not a JSON object")
)
