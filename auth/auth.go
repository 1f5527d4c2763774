// Package auth supplies the anti-forgery token the archive API expects on every
// mutating request, and attaches it to outgoing HTTP requests.
//
// A token is obtained from a TokenSource once, when a workflow is constructed, and
// the resulting Context is reused for every request of that workflow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultHeader is the header the archive API reads the anti-forgery token from.
const DefaultHeader = "X-CSRFToken"

// ErrNoToken is returned when a source produced an empty token.
var ErrNoToken = errors.New("auth: no token available")

// TokenSource produces an anti-forgery token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static returns a source that always yields token.
func Static(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) {
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	})
}

// Context is a resolved token bound to the header it is sent in.
type Context struct {
	Header string
	Token  string
}

// Resolve reads a token from src once. An empty header selects DefaultHeader.
func Resolve(ctx context.Context, src TokenSource, header string) (Context, error) {
	if src == nil {
		return Context{}, fmt.Errorf("auth: token source cannot be nil")
	}
	if header == "" {
		header = DefaultHeader
	}

	token, err := src.Token(ctx)
	if err != nil {
		return Context{}, fmt.Errorf("auth: resolve token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Context{}, ErrNoToken
	}

	return Context{Header: header, Token: token}, nil
}

// Apply sets the token header on req. A zero Context leaves req unchanged.
func (c Context) Apply(req *http.Request) {
	if c.Token == "" {
		return
	}
	header := c.Header
	if header == "" {
		header = DefaultHeader
	}
	req.Header.Set(header, c.Token)
}
