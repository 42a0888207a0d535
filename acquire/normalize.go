package acquire

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/poiesic/doccache/core"
)

// Normalizer converts raw content into core.CanonicalContent.
// It is safe for concurrent use.
type Normalizer struct {
	defaultPartition string
	policy           *bluemonday.Policy
	markdown         *converter.Converter
}

// NewNormalizer creates a normalizer. Content whose target names neither a
// partition nor a technology lands in defaultPartition.
func NewNormalizer(defaultPartition string) *Normalizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#-]+$`)).OnElements("code", "pre")

	return &Normalizer{
		defaultPartition: defaultPartition,
		policy:           policy,
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Normalize maps raw onto the canonical representation. Content that yields
// no text is malformed.
func (n *Normalizer) Normalize(raw RawContent, target core.AcquisitionTarget) (*core.CanonicalContent, error) {
	var (
		title, body, sourceURL, provider, version string
		err                                       error
	)

	switch rc := raw.(type) {
	case *CodeHostContent:
		loc := Location{Owner: rc.Owner, Repo: rc.Repo, Path: rc.Path, Ref: rc.Ref}
		sourceURL = rc.HTMLURL
		if sourceURL == "" {
			sourceURL = loc.String()
		}
		provider = "code-host:" + rc.Owner + "/" + rc.Repo
		version = rc.Ref
		switch strings.ToLower(path.Ext(rc.Path)) {
		case ".html", ".htm":
			title, body, err = n.convertHTML(rc.Data, sourceURL)
		default:
			body = string(rc.Data)
			title = markdownTitle(body)
		}
		if title == "" {
			title = path.Base(rc.Path)
		}
		target.Location = loc.String()

	case *ScrapedContent:
		sourceURL = rc.URL
		provider = "web:" + hostOf(rc.URL)
		if rc.ContentType == "" || strings.Contains(rc.ContentType, "html") {
			title, body, err = n.convertHTML(rc.Body, rc.URL)
		} else {
			body = string(rc.Body)
			title = markdownTitle(body)
		}
		if title == "" {
			title = urlTitle(rc.URL)
		}
		target.Location = rc.URL

	case *ManualContent:
		sourceURL = rc.URL
		provider = string(core.SourceManual)
		title = strings.TrimSpace(rc.Title)
		body = rc.Body
		if title == "" {
			title = markdownTitle(body)
		}
		if target.Location == "" {
			target.Location = sourceURL
		}
		if target.Location == "" {
			target.Location = title
		}

	default:
		return nil, fmt.Errorf("%w: raw content %T", ErrUnsupportedTarget, raw)
	}
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: %s has no text", core.ErrMalformedContent, target.Location)
	}

	if target.Version != "" {
		version = target.Version
	}
	docType := target.DocumentType
	if docType == "" {
		docType = inferDocumentType(sourceURL)
	}
	technology := strings.ToLower(strings.TrimSpace(target.Technology))
	partition := target.Partition
	if partition == "" {
		partition = technology
	}
	if partition == "" {
		partition = n.defaultPartition
	}

	return &core.CanonicalContent{
		ContentID:      ContentID(raw.Source(), target.Location),
		Title:          title,
		Body:           body,
		SourceURL:      sourceURL,
		SourceProvider: provider,
		Technology:     technology,
		DocumentType:   docType,
		Version:        version,
		Partition:      partition,
	}, nil
}

// ContentID is stable per source location, so a refetch replaces its predecessor.
func ContentID(kind core.SourceKind, location string) string {
	return fmt.Sprintf("%016x", uint64(core.IDFromContent(string(kind)+":"+location)))
}

// convertHTML extracts the title and converts the main content to markdown.
func (n *Normalizer) convertHTML(data []byte, sourceURL string) (string, string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("%w: parse html: %v", core.ErrMalformedContent, err)
	}

	title := findTitle(doc)
	content := findMain(doc)
	stripBoilerplate(content)

	var buf bytes.Buffer
	if err := html.Render(&buf, content); err != nil {
		return "", "", fmt.Errorf("%w: render html: %v", core.ErrMalformedContent, err)
	}

	clean := n.policy.Sanitize(buf.String())
	md, err := n.markdown.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil {
		return "", "", fmt.Errorf("%w: convert html: %v", core.ErrMalformedContent, err)
	}
	if title == "" {
		title = markdownTitle(md)
	}
	return title, md, nil
}

// findTitle returns the <title> text, falling back to the first <h1>.
func findTitle(doc *html.Node) string {
	if t := findElement(doc, atom.Title); t != nil {
		if s := strings.TrimSpace(textOf(t)); s != "" {
			return s
		}
	}
	if h := findElement(doc, atom.H1); h != nil {
		return strings.TrimSpace(textOf(h))
	}
	return ""
}

// findMain prefers <main>, then <article>, then <body>.
func findMain(doc *html.Node) *html.Node {
	for _, a := range []atom.Atom{atom.Main, atom.Article, atom.Body} {
		if n := findElement(doc, a); n != nil {
			return n
		}
	}
	return doc
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// stripBoilerplate removes navigation and scripting subtrees in place.
func stripBoilerplate(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Footer, atom.Header, atom.Aside, atom.Form:
				n.RemoveChild(c)
				c = next
				continue
			}
		}
		stripBoilerplate(c)
		c = next
	}
}

func textOf(n *html.Node) string {
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
	return strings.Join(strings.Fields(sb.String()), " ")
}

// markdownTitle returns the first level-one or level-two heading.
func markdownTitle(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"# ", "## "} {
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(line, prefix))
			}
		}
	}
	return ""
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.ToLower(u.Host)
}

func urlTitle(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if b := path.Base(u.Path); b != "/" && b != "." {
		return b
	}
	return u.Host
}

// inferDocumentType guesses the document type from path segments.
func inferDocumentType(location string) core.DocumentType {
	l := strings.ToLower(location)
	switch {
	case strings.Contains(l, "/api/") || strings.Contains(l, "/api-") || strings.HasSuffix(l, "/api"):
		return core.DocumentTypeAPI
	case strings.Contains(l, "reference") || strings.Contains(l, "/library/") || strings.Contains(l, "/ref/"):
		return core.DocumentTypeReference
	case strings.Contains(l, "tutorial"):
		return core.DocumentTypeTutorial
	case strings.Contains(l, "guide") || strings.Contains(l, "/docs/"):
		return core.DocumentTypeGuide
	case strings.Contains(l, "blog"):
		return core.DocumentTypeBlog
	default:
		return core.DocumentTypeOther
	}
}
