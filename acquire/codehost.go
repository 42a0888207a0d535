package acquire

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
)

// CodeHostClient reads files through a GitHub-compatible contents API.
type CodeHostClient struct {
	client    *http.Client
	baseURL   string
	host      string
	token     string
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

var _ Fetcher = (*CodeHostClient)(nil)

// ClientOption configures the acquisition clients.
type ClientOption func(*clientOptions)

type clientOptions struct {
	client *http.Client
	logger *slog.Logger
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.client = c
	}
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

func applyClientOptions(opts []ClientOption) clientOptions {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = newHTTPClient()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// NewCodeHostClient creates a code-host client from the enrichment config.
func NewCodeHostClient(cfg config.Enrich, opts ...ClientOption) *CodeHostClient {
	o := applyClientOptions(opts)
	base := strings.TrimSuffix(cfg.CodeHostBaseURL, "/")
	host := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		host = u.Host
	}
	return &CodeHostClient{
		client:    o.client,
		baseURL:   base,
		host:      host,
		token:     cfg.CodeHostToken,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		logger:    o.logger.With("component", "codehost-client"),
	}
}

// contentsResponse is the subset of the contents API reply that is read.
type contentsResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
	Path     string `json:"path"`
	HTMLURL  string `json:"html_url"`
}

// Kind returns core.SourceCodeHost.
func (c *CodeHostClient) Kind() core.SourceKind { return core.SourceCodeHost }

// Destination is the API host; every repository shares one breaker.
func (c *CodeHostClient) Destination(core.AcquisitionTarget) string { return c.host }

// Fetch reads one file. Directories and non-base64 payloads are malformed content.
func (c *CodeHostClient) Fetch(ctx context.Context, target core.AcquisitionTarget) (RawContent, error) {
	if target.Kind != core.SourceCodeHost {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target.Kind)
	}
	loc, err := ParseLocation(target.Location)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.baseURL, url.PathEscape(loc.Owner), url.PathEscape(loc.Repo), escapePath(loc.Path))
	if loc.Ref != "" {
		endpoint += "?ref=" + url.QueryEscape(loc.Ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &core.TransientError{Op: "codehost get", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(endpoint, resp.StatusCode); err != nil {
		c.logger.Debug("code host rejected request", "location", loc.String(), "status", resp.StatusCode)
		return nil, err
	}

	var reply contentsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBytes)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: decode contents of %s: %v", core.ErrMalformedContent, loc, err)
	}
	if reply.Type != "file" || reply.Encoding != "base64" {
		return nil, fmt.Errorf("%w: %s is %s/%s, want base64 file", core.ErrMalformedContent, loc, reply.Type, reply.Encoding)
	}

	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(reply.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64 of %s: %v", core.ErrMalformedContent, loc, err)
	}

	c.logger.Debug("fetched file", "location", loc.String(), "bytes", len(data))
	return &CodeHostContent{
		Owner:   loc.Owner,
		Repo:    loc.Repo,
		Path:    loc.Path,
		Ref:     loc.Ref,
		SHA:     reply.SHA,
		HTMLURL: reply.HTMLURL,
		Data:    data,
	}, nil
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
