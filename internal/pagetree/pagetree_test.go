package pagetree

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sectionHTML = `<!doctype html>
<html>
<head>
  <title>Housing <b>services</b></title>
  <link rel="canonical" href="https://example.org/en/housing/">
</head>
<body>
  <nav>
    <a href="/en/housing/">Housing</a>
    <a href="/en/housing/rent-aid">Rent   aid</a>
    <a href="rent-aid?utm_source=nav#top">Rent aid again</a>
    <a href="../contact/">Contact</a>
    <a href="https://EXAMPLE.org/en/housing/shelters/">Shelters</a>
    <a href="https://other.example.com/en/">Elsewhere</a>
    <a href="mailto:help@example.org">Mail</a>
    <a href="#main">Skip</a>
    <a href="">Empty</a>
  </nav>
</body>
</html>`

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtract(t *testing.T) {
	base, _ := url.Parse("https://example.org/en/housing/index.html")

	tree := Extract(parse(t, sectionHTML), base, 0)

	assert.Equal(t, "/en/housing/", tree.Root)
	assert.Equal(t, []string{
		"/en/housing/",
		"/en/housing/rent-aid",
		"/en/contact/",
		"/en/housing/shelters/",
	}, tree.URLs())
	assert.Equal(t, "Housing services", tree.Pages[0].Title)
	assert.Equal(t, "Rent aid", tree.Pages[1].Title)
}

func TestExtract_MaxPages(t *testing.T) {
	base, _ := url.Parse("https://example.org/en/housing/")

	tree := Extract(parse(t, sectionHTML), base, 2)

	assert.Len(t, tree.Pages, 2)
}

func TestExtract_NoCanonicalUsesBase(t *testing.T) {
	base, _ := url.Parse("https://example.org/fr/logement")

	tree := Extract(parse(t, `<a href="/fr/logement/aide">Aide</a>`), base, 0)

	assert.Equal(t, "/fr/logement", tree.Root)
	assert.Equal(t, []string{"/fr/logement", "/fr/logement/aide"}, tree.URLs())
}

func TestExtract_ForeignCanonicalIgnored(t *testing.T) {
	base, _ := url.Parse("https://example.org/page")

	tree := Extract(parse(t, `<link rel="canonical" href="https://mirror.example.net/page">`), base, 0)

	assert.Equal(t, "/page", tree.Root)
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.org", "/"},
		{"https://example.org/", "/"},
		{"https://example.org/a//b/", "/a/b/"},
		{"https://example.org/a/./b/../c", "/a/c"},
		{"https://example.org/a%20b", "/a%20b"},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, canonicalPath(u), tt.in)
	}
}

func newSite(t *testing.T, robots string, robotsStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(robotsStatus)
		_, _ = w.Write([]byte(robots))
	})
	mux.HandleFunc("/en/housing/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<title>Housing</title><a href="/en/housing/rent-aid">Rent aid</a>`))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/en/housing/", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLoad(t *testing.T) {
	server := newSite(t, "", http.StatusNotFound)

	tree, err := NewLoader().Load(context.Background(), server.URL+"/en/housing/")

	require.NoError(t, err)
	assert.Equal(t, []string{"/en/housing/", "/en/housing/rent-aid"}, tree.URLs())
}

func TestLoad_RobotsDisallow(t *testing.T) {
	server := newSite(t, "User-agent: *\nDisallow: /en/\n", http.StatusOK)

	_, err := NewLoader().Load(context.Background(), server.URL+"/en/housing/")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "robots.txt")
}

func TestLoad_RobotsAllowOtherPaths(t *testing.T) {
	server := newSite(t, "User-agent: *\nDisallow: /private/\n", http.StatusOK)

	tree, err := NewLoader().Load(context.Background(), server.URL+"/en/housing/")

	require.NoError(t, err)
	assert.Len(t, tree.Pages, 2)
}

func TestLoad_RedirectNotFollowed(t *testing.T) {
	server := newSite(t, "", http.StatusNotFound)

	_, err := NewLoader().Load(context.Background(), server.URL+"/moved")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 302")
}

func TestLoad_InvalidURL(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), "/en/housing/")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing scheme or host")
}
