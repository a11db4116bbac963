package urlvariant

import (
	"net/url"
	"strings"
)

// MaxVariations is the hard cap on candidates returned for one canonical URL.
// Every candidate costs one backend request, so the cap bounds probe cost.
const MaxVariations = 15

// DefaultLocales are the locale path segments recognised by Generate.
var DefaultLocales = []string{"en", "fr"}

var indexDocuments = []string{"index.html", "index.php"}

// Generator derives candidate spellings of a canonical URL.
type Generator struct {
	locales []string
	max     int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLocales replaces the recognised locale segments.
func WithLocales(locales ...string) Option {
	return func(g *Generator) {
		g.locales = g.locales[:0]
		for _, l := range locales {
			l = strings.Trim(strings.ToLower(strings.TrimSpace(l)), "/")
			if l != "" {
				g.locales = append(g.locales, l)
			}
		}
	}
}

// WithMax lowers the number of candidates returned. Values outside
// [1, MaxVariations] are clamped.
func WithMax(n int) Option {
	return func(g *Generator) {
		switch {
		case n < 1:
			g.max = 1
		case n > MaxVariations:
			g.max = MaxVariations
		default:
			g.max = n
		}
	}
}

// NewGenerator creates a Generator with DefaultLocales and MaxVariations.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		locales: append([]string(nil), DefaultLocales...),
		max:     MaxVariations,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGenerator = NewGenerator()

// Generate returns the candidates for canonical using the default Generator.
func Generate(canonical string) []string {
	return defaultGenerator.Generate(canonical)
}

// Generate returns an ordered, de-duplicated list of candidate spellings for
// canonical. The result always holds at least one entry and never more than
// the configured maximum. Output depends only on the input and the Generator
// configuration.
func (g *Generator) Generate(canonical string) []string {
	in, ok := parse(canonical)
	if !ok {
		return []string{"/"}
	}

	suffix := ""
	if in.query != "" {
		suffix += "?" + in.query
	}
	if in.fragment != "" {
		suffix += "#" + in.fragment
	}

	paths := structural(in.path)
	for _, p := range structural(in.path) {
		paths = append(paths, g.localeVariants(p)...)
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, g.max)
	add := func(v string) {
		if len(out) >= g.max {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		if hasDoubledSeparator(v) {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for _, p := range paths {
		add(p + suffix)
		add(p)
		if in.origin != "" {
			add(in.origin + p + suffix)
			add(in.origin + p)
		}
	}

	if len(out) == 0 {
		return []string{"/"}
	}
	return out
}

// parts is a canonical URL split into the pieces the generator recombines.
type parts struct {
	origin   string
	path     string
	query    string
	fragment string
}

// parse splits raw into parts. It reports false for input that cannot name a
// page, which callers treat as the site root.
func parse(raw string) (parts, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || hasControlChars(raw) {
		return parts{}, false
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return parts{}, false
		}
		p := u.EscapedPath()
		if p == "" {
			p = "/"
		}
		return parts{
			origin:   strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host),
			path:     p,
			query:    u.RawQuery,
			fragment: u.EscapedFragment(),
		}, true
	}

	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}

	var out parts
	rest := raw
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		out.fragment = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		out.query = rest[i+1:]
		rest = rest[:i]
	}
	if _, err := url.PathUnescape(rest); err != nil {
		return parts{}, false
	}
	out.path = rest
	if out.path == "" {
		out.path = "/"
	}
	return out, true
}

// structural returns the trailing-slash and index-document spellings of p,
// starting with p itself.
func structural(p string) []string {
	if dir, doc, ok := splitIndex(p); ok {
		out := []string{p, dir}
		if trimmed := strings.TrimSuffix(dir, "/"); trimmed != "" {
			out = append(out, trimmed)
		}
		for _, other := range indexDocuments {
			if other != doc {
				out = append(out, dir+other)
			}
		}
		return out
	}

	out := []string{p}
	if p != "/" {
		out = append(out, toggleSlash(p))
	}
	// Appending to the slash-terminated form would double the separator, so
	// both forms collapse onto the directory spelling.
	base := strings.TrimSuffix(p, "/")
	for _, doc := range indexDocuments {
		out = append(out, base+"/"+doc)
	}
	return out
}

// localeVariants removes the first locale segment found in p, or, when p has
// none, prefixes p with every locale.
func (g *Generator) localeVariants(p string) []string {
	trailing := strings.HasSuffix(p, "/")
	segments := strings.Split(strings.Trim(p, "/"), "/")

	for i, seg := range segments {
		if !g.isLocale(seg) {
			continue
		}
		rest := append(append([]string(nil), segments[:i]...), segments[i+1:]...)
		if len(rest) == 0 {
			return []string{"/"}
		}
		stripped := "/" + strings.Join(rest, "/")
		if trailing {
			stripped += "/"
		}
		return []string{stripped}
	}

	out := make([]string, 0, len(g.locales))
	for _, l := range g.locales {
		if p == "/" {
			out = append(out, "/"+l+"/")
			continue
		}
		out = append(out, "/"+l+p)
	}
	return out
}

func (g *Generator) isLocale(seg string) bool {
	seg = strings.ToLower(seg)
	for _, l := range g.locales {
		if seg == l {
			return true
		}
	}
	return false
}

func toggleSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return strings.TrimSuffix(p, "/")
	}
	return p + "/"
}

func splitIndex(p string) (dir, doc string, ok bool) {
	for _, d := range indexDocuments {
		if strings.HasSuffix(p, "/"+d) {
			return strings.TrimSuffix(p, d), d, true
		}
	}
	return "", "", false
}

// hasDoubledSeparator reports whether the path part of v contains "//".
func hasDoubledSeparator(v string) bool {
	if i := strings.Index(v, "://"); i >= 0 {
		v = v[i+3:]
	}
	if i := strings.IndexAny(v, "?#"); i >= 0 {
		v = v[:i]
	}
	return strings.Contains(v, "//")
}

func hasControlChars(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return true
		}
	}
	return false
}
