// Package acquire fetches documentation from acquisition collaborators and
// converts it into the canonical content representation.
//
// Every source yields one of the RawContent variants. Normalize is the only
// place that knows how each variant maps to core.CanonicalContent.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/doccache/core"
)

// ErrUnsupportedTarget is returned when a fetcher is handed a target of another kind.
var ErrUnsupportedTarget = errors.New("unsupported acquisition target")

// Fetcher retrieves raw content for a target. Implementations must be safe for concurrent use.
type Fetcher interface {
	// Kind is the source kind this fetcher serves.
	Kind() core.SourceKind

	// Destination names the remote endpoint target resolves to; breakers key on it.
	Destination(target core.AcquisitionTarget) string

	// Fetch downloads the target.
	Fetch(ctx context.Context, target core.AcquisitionTarget) (RawContent, error)
}

// RawContent is the closed set of fetched payloads.
type RawContent interface {
	// Source is the kind of collaborator that produced the payload.
	Source() core.SourceKind
	raw()
}

// CodeHostContent is a file read from a code-hosting API.
type CodeHostContent struct {
	Owner   string
	Repo    string
	Path    string
	Ref     string
	SHA     string
	HTMLURL string
	Data    []byte // Decoded file contents
}

// ScrapedContent is a fetched web page.
type ScrapedContent struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// ManualContent is markdown pushed directly by an operator.
type ManualContent struct {
	Title string
	Body  string
	URL   string
}

func (*CodeHostContent) Source() core.SourceKind { return core.SourceCodeHost }
func (*ScrapedContent) Source() core.SourceKind  { return core.SourceWeb }
func (*ManualContent) Source() core.SourceKind   { return core.SourceManual }

func (*CodeHostContent) raw() {}
func (*ScrapedContent) raw()  {}
func (*ManualContent) raw()   {}

// Location is a parsed code-host target "owner/repo/path[@ref]".
type Location struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

// ParseLocation parses a code-host location.
func ParseLocation(s string) (Location, error) {
	path, ref, _ := strings.Cut(strings.TrimSpace(s), "@")
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Location{}, fmt.Errorf("%w: code-host location %q", ErrUnsupportedTarget, s)
	}
	return Location{Owner: parts[0], Repo: parts[1], Path: parts[2], Ref: ref}, nil
}

func (l Location) String() string {
	s := l.Owner + "/" + l.Repo + "/" + l.Path
	if l.Ref != "" {
		s += "@" + l.Ref
	}
	return s
}

// StatusError is an unexpected HTTP status from a collaborator.
// Not-found style codes match core.ErrSourceNotFound, throttling and server
// codes match core.ErrTransient.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http %d", e.URL, e.Code)
}

// Is maps the status onto the error taxonomy.
func (e *StatusError) Is(target error) bool {
	switch target {
	case core.ErrSourceNotFound:
		switch e.Code {
		case http.StatusNotFound, http.StatusGone, http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
	case core.ErrTransient:
		return e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout || e.Code >= 500
	}
	return false
}

// checkStatus returns nil for 2xx codes.
func checkStatus(url string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	return &StatusError{URL: url, Code: code}
}

// newHTTPClient builds a client that refuses long redirect chains.
func newHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			return nil
		},
	}
}
