// Package content fetches web pages and reduces them to readable text.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"github.com/target/mmk-summarizer/internal/core"
)

const (
	defaultTimeout      = 20 * time.Second
	defaultMaxBodyBytes = 5 << 20
	defaultUserAgent    = "mmk-summarizer/1.0 (+https://github.com/target/mmk-summarizer)"
)

// ErrUnsupportedContent is returned for responses that are neither HTML nor plain text.
var ErrUnsupportedContent = errors.New("unsupported content type")

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	HTTPClient   *http.Client
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxChars     int
	UserAgent    string
	Logger       *slog.Logger
}

// Fetcher implements core.ContentFetcher over HTTP.
type Fetcher struct {
	client    *http.Client
	maxBody   int64
	maxChars  int
	userAgent string
	logger    *slog.Logger
}

var _ core.ContentFetcher = (*Fetcher)(nil)

// NewFetcher constructs a Fetcher, filling unset options with defaults.
func NewFetcher(opts FetcherOptions) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		client:    client,
		maxBody:   maxBody,
		maxChars:  maxChars,
		userAgent: ua,
		logger:    logger.With("component", "content_fetcher"),
	}
}

// FetchAndExtract downloads rawURL and returns its readable text. An empty result with a
// nil error means the page had no readable content.
func (f *Fetcher) FetchAndExtract(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.1")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", site(rawURL), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.DebugContext(ctx, "close response body", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	ct := resp.Header.Get("Content-Type")
	mode, err := contentKind(ct)
	if err != nil {
		return "", err
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBody), ct)
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}

	var text string
	switch mode {
	case kindHTML:
		text, err = ExtractHTML(body, f.maxChars)
	default:
		var raw []byte
		raw, err = io.ReadAll(body)
		text = Normalize(string(raw), f.maxChars)
	}
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	f.logger.DebugContext(ctx, "content extracted",
		"site", site(rawURL),
		"status", resp.StatusCode,
		"chars", len(text),
		"duration", time.Since(start))
	return text, nil
}

type kind int

const (
	kindHTML kind = iota
	kindText
)

// contentKind maps a Content-Type header to an extraction mode. A missing header is
// treated as HTML since most servers that omit it serve pages.
func contentKind(contentType string) (kind, error) {
	if strings.TrimSpace(contentType) == "" {
		return kindHTML, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedContent, contentType)
	}
	switch mt {
	case "text/html", "application/xhtml+xml":
		return kindHTML, nil
	case "text/plain":
		return kindText, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedContent, mt)
	}
}

// site returns the registrable domain of rawURL for logs, or the host when it has none.
func site(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return host
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}
