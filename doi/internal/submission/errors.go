package submission

import (
	"encoding/json"
	"strings"
)

// Fallback messages used when the server gave no usable reason.
const (
	FallbackCreate  = "Failed to create DOI"
	FallbackUpdate  = "Failed to update DOI"
	FallbackPublish = "Failed to publish DOI"
)

// MalformedResponse is shown when the server accepted a request but its reply
// could not be read.
const MalformedResponse = "The server accepted the request but returned an unreadable response."

type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Detail  json.RawMessage `json:"detail"`
}

type validationError struct {
	Msg string `json:"msg"`
}

// ErrorMessage extracts the user-facing reason from a failed response body.
// It prefers a top-level "message", then the first "detail" entry, then "error",
// and returns fallback when none is present or the body is not JSON.
func ErrorMessage(body []byte, fallback string) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return fallback
	}

	if msg := strings.TrimSpace(eb.Message); msg != "" {
		return msg
	}
	if msg := detailMessage(eb.Detail); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(eb.Error); msg != "" {
		return msg
	}
	return fallback
}

// detailMessage accepts both a list of validation errors and a plain string.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var list []validationError
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 {
			return strings.TrimSpace(list[0].Msg)
		}
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
