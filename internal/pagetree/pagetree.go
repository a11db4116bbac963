// Package pagetree loads an HTML page and lists the same-site pages it links
// to, so a whole section of a site can be reconciled in one pass.
package pagetree

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Togather-Foundation/sitelens/internal/sanitize"
	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
)

const (
	// DefaultUserAgent identifies the loader to the sites it reads.
	DefaultUserAgent = "sitelens/1.0 (+https://togather.foundation)"
	// DefaultMaxPages bounds the pages returned from one tree.
	DefaultMaxPages = 50

	fetchTimeout  = 30 * time.Second
	robotsTimeout = 10 * time.Second
	maxBodyBytes  = 10 * 1024 * 1024
)

// Page is one entry of a tree. URL is the origin-relative path used as the
// canonical identifier when reconciling.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Tree is a root page and the same-site pages it links to, root first.
type Tree struct {
	Root  string `json:"root"`
	Pages []Page `json:"pages"`
}

// URLs returns the canonical identifiers of every page in order.
func (t *Tree) URLs() []string {
	out := make([]string, len(t.Pages))
	for i, p := range t.Pages {
		out[i] = p.URL
	}
	return out
}

// Loader fetches pages and extracts their trees.
type Loader struct {
	client    *http.Client
	userAgent string
	maxPages  int
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used for page and robots.txt requests.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		l.client = c
	}
}

// WithMaxPages bounds the number of pages in a tree.
func WithMaxPages(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxPages = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(l *Loader) {
		l.userAgent = ua
	}
}

// NewLoader creates a Loader. Redirects are not followed.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: DefaultUserAgent,
		maxPages:  DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches rawURL and returns its tree. robots.txt is honoured; an
// unreachable robots.txt is treated as allowing the fetch.
func (l *Loader) Load(ctx context.Context, rawURL string) (*Tree, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: missing scheme or host", rawURL)
	}

	allowed, robotsErr := l.robotsAllowed(ctx, base)
	if robotsErr != nil {
		zerolog.Ctx(ctx).Warn().Err(robotsErr).Str("url", rawURL).Msg("pagetree: robots.txt check failed, proceeding as allowed")
		allowed = true
	}
	if !allowed {
		return nil, fmt.Errorf("fetching disallowed by robots.txt for %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %q", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %q: %w", rawURL, err)
	}

	return Extract(doc, base, l.maxPages), nil
}

// Extract builds a tree from a parsed page located at base. The root is the
// page's rel=canonical link when it is on the same host, otherwise base.
// Links to other hosts, non-HTTP schemes and in-page anchors are skipped;
// query strings and fragments are dropped and paths are cleaned.
func Extract(doc *goquery.Document, base *url.URL, maxPages int) *Tree {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	rootURL := base
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if u, ok := resolve(base, href); ok {
			rootURL = u
		}
	}

	tree := &Tree{Root: canonicalPath(rootURL)}
	seen := map[string]bool{tree.Root: true}
	tree.Pages = append(tree.Pages, Page{
		URL:   tree.Root,
		Title: sanitize.Subject(doc.Find("title").First().Text()),
	})

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(tree.Pages) >= maxPages {
			return false
		}
		href, _ := s.Attr("href")
		u, ok := resolve(base, href)
		if !ok {
			return true
		}
		p := canonicalPath(u)
		if seen[p] {
			return true
		}
		seen[p] = true
		tree.Pages = append(tree.Pages, Page{URL: p, Title: sanitize.Subject(s.Text())})
		return true
	})

	return tree
}

// resolve returns href as an absolute URL on base's host.
func resolve(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if !strings.EqualFold(u.Hostname(), base.Hostname()) {
		return nil, false
	}
	return u, true
}

// canonicalPath cleans u's path and keeps a trailing slash when present.
func canonicalPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// robotsAllowed checks base against its site's robots.txt. A missing (404)
// robots.txt allows everything.
func (l *Loader) robotsAllowed(ctx context.Context, base *url.URL) (bool, error) {
	robotsURL := &url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   "/robots.txt",
	}

	ctx, cancel := context.WithTimeout(ctx, robotsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return false, fmt.Errorf("building robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetching robots.txt from %q: %w", robotsURL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return false, fmt.Errorf("reading robots.txt body: %w", err)
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		// Malformed robots.txt allows everything.
		return true, nil
	}

	p := base.EscapedPath()
	if p == "" {
		p = "/"
	}
	return data.TestAgent(p, l.userAgent), nil
}
