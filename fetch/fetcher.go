package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veridian/atomforge/core"
	"golang.org/x/net/html"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 5 << 20
)

// ErrUnsupportedScheme indicates a source URL that is not http or https.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// Document is a fetched and classified source document.
type Document struct {
	// Text is the document content. For HTML sources the markup is already
	// reduced to visible text; for PDF sources this is the raw byte stream,
	// to be handed to an external extraction collaborator.
	Text        string
	ContentType core.ContentType
}

// Fetcher downloads a source document. Implementations must be safe for
// concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) (*Document, error)
}

// HTTPFetcher implements Fetcher over plain HTTP(S).
type HTTPFetcher struct {
	client       *http.Client
	maxBodyBytes int64
	logger       *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *HTTPFetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		}
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(limit int64) Option {
	return func(f *HTTPFetcher) {
		if limit > 0 {
			f.maxBodyBytes = limit
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewHTTPFetcher creates a fetcher with a 30s timeout and a 5 MiB body cap.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:       &http.Client{Timeout: defaultTimeout},
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the document at sourceURL and classifies it by the
// Content-Type header, falling back to the URL extension.
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string) (*Document, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrFetch, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %w %q", core.ErrFetch, ErrUnsupportedScheme, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("fetch failed", "url", sourceURL, "err", err)
		return nil, fmt.Errorf("%w: %v", core.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("fetch returned non-2xx status", "url", sourceURL, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: HTTP %d %s", core.ErrFetch, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", core.ErrFetch, err)
	}

	contentType := Classify(resp.Header.Get("Content-Type"), u.Path)
	doc := &Document{ContentType: contentType}

	switch contentType {
	case core.ContentTypeHTML:
		doc.Text = ExtractText(string(body))
	default:
		doc.Text = string(body)
	}

	f.logger.Debug("fetched document",
		"url", sourceURL,
		"contentType", contentType,
		"bytes", len(body))
	return doc, nil
}

// Classify determines a document's content type from the Content-Type header
// value, falling back to the URL path extension. Unrecognized sources are
// treated as plain text.
func Classify(header, path string) core.ContentType {
	mediaType := header
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	switch {
	case mediaType == "application/pdf":
		return core.ContentTypePDF
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return core.ContentTypeHTML
	case strings.HasPrefix(mediaType, "text/"):
		return core.ContentTypeText
	}

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return core.ContentTypePDF
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return core.ContentTypeHTML
	case strings.HasSuffix(lower, ".txt"), strings.HasSuffix(lower, ".md"):
		return core.ContentTypeText
	}
	return core.ContentTypeText
}

// ExtractText reduces an HTML document to its visible text, skipping script
// and style elements. Malformed markup is tolerated; the parser never fails
// on real-world HTML.
func ExtractText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(parts, " ")
}
