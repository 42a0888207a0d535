package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
)

// WebClient scrapes documentation pages over HTTP.
type WebClient struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	now       func() time.Time
	logger    *slog.Logger
}

var _ Fetcher = (*WebClient)(nil)

// NewWebClient creates a web scraping client from the enrichment config.
func NewWebClient(cfg config.Enrich, opts ...ClientOption) *WebClient {
	o := applyClientOptions(opts)
	return &WebClient{
		client:    o.client,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		now:       time.Now,
		logger:    o.logger.With("component", "web-client"),
	}
}

// Kind returns core.SourceWeb.
func (c *WebClient) Kind() core.SourceKind { return core.SourceWeb }

// Destination is the target's host, so one slow site does not trip the others.
func (c *WebClient) Destination(target core.AcquisitionTarget) string {
	u, err := url.Parse(target.Location)
	if err != nil || u.Host == "" {
		return target.Location
	}
	return strings.ToLower(u.Host)
}

// Fetch downloads a page. Only textual content types are accepted.
func (c *WebClient) Fetch(ctx context.Context, target core.AcquisitionTarget) (RawContent, error) {
	if target.Kind != core.SourceWeb {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target.Kind)
	}
	u, err := url.Parse(target.Location)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: url %q", ErrUnsupportedTarget, target.Location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,text/markdown;q=0.9,text/plain;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &core.TransientError{Op: "web get", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(u.String(), resp.StatusCode); err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "" && !strings.HasPrefix(mediaType, "text/") && mediaType != "application/xhtml+xml" {
		return nil, fmt.Errorf("%w: %s served %s", core.ErrMalformedContent, u, mediaType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, &core.TransientError{Op: "web read", Err: err}
	}

	c.logger.Debug("fetched page", "url", u.String(), "status", resp.StatusCode, "bytes", len(body))
	return &ScrapedContent{
		URL:         u.String(),
		StatusCode:  resp.StatusCode,
		ContentType: mediaType,
		Body:        body,
		FetchedAt:   c.now().UTC(),
	}, nil
}
