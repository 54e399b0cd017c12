package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Config holds the static configuration for an HTTPSource.
type Config struct {
	UserAgent string
}

// Dependencies allow test overrides for the HTTP client.
type Dependencies struct {
	HTTPClient *http.Client
}

// HTTPSource fetches a page over plain HTTP and extracts its visible text
// from the HTML body. It covers server-rendered pages; a browser-automation
// source can substitute behind the same interface for script-heavy sites.
type HTTPSource struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSource builds an HTTPSource from configuration and dependencies.
func NewHTTPSource(cfg Config, deps Dependencies) (*HTTPSource, error) {
	if deps.HTTPClient == nil {
		return nil, fmt.Errorf("HTTP client is required")
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPSource{
		client:    deps.HTTPClient,
		userAgent: userAgent,
	}, nil
}

// Fetch implements Source. Failures are classified: deadline overruns as
// timeout, transport problems as network, and HTTP error statuses or
// unparseable bodies as render failures.
func (s *HTTPSource) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &Error{Kind: KindNetwork, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &Error{Kind: classifyTransport(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", &Error{Kind: KindRender, URL: url, Err: fmt.Errorf("status %s", resp.Status)}
	}

	text, err := ExtractText(resp.Body)
	if err != nil {
		return "", &Error{Kind: classifyTransport(err), URL: url, Err: fmt.Errorf("extract text: %w", err)}
	}
	return text, nil
}

func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// skippedElements never contribute visible text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"iframe":   true,
}

// ExtractText walks an HTML document and collects the text a reader would
// see, separated by spaces. Markup inside script/style and the document
// head is ignored.
func ExtractText(r io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(r)

	var b strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != io.EOF {
				return "", err
			}
			return b.String(), nil
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skippedElements[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skippedElements[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
	}
}
