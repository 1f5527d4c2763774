package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// DefaultElementID is the id of the element the archive pages embed the token in.
const DefaultElementID = "csrf-token"

// PageTokenSource scrapes the token from a server-rendered page. The page embeds it
// as a JSON string literal in an element such as
//
//	<script id="csrf-token" type="application/json">"abc123"</script>
//
// Use an HTTP client with a cookie jar so the matching CSRF cookie is kept for
// subsequent requests.
type PageTokenSource struct {
	// URL of the page to fetch
	URL string

	// ElementID overrides DefaultElementID
	ElementID string

	// Client defaults to http.DefaultClient
	Client *http.Client
}

// Token implements TokenSource.
func (p *PageTokenSource) Token(ctx context.Context) (string, error) {
	if p.URL == "" {
		return "", fmt.Errorf("auth: page URL cannot be empty")
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return "", fmt.Errorf("auth: build page request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("auth: fetch page: unexpected status %d", resp.StatusCode)
	}

	id := p.ElementID
	if id == "" {
		id = DefaultElementID
	}
	return TokenFromHTML(resp.Body, id)
}

// TokenFromHTML finds the element with the given id in r and decodes its text
// content as a JSON string.
func TokenFromHTML(r io.Reader, elementID string) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("auth: parse page: %w", err)
	}

	node := findByID(doc, elementID)
	if node == nil {
		return "", fmt.Errorf("auth: element %q not found: %w", elementID, ErrNoToken)
	}

	var token string
	if err := json.Unmarshal([]byte(strings.TrimSpace(textContent(node))), &token); err != nil {
		return "", fmt.Errorf("auth: decode element %q: %w", elementID, err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
