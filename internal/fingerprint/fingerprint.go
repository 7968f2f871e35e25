package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Fingerprinter computes stable state identities from page observations.
// It is a pure transformation with no network or I/O side effects; the
// caller is responsible for producing the observation and snapshots.
type Fingerprinter struct {
	// includeQuery folds the (sorted) query string into the identity.
	// Off by default: most applications use query parameters for volatile
	// concerns (cache busters, tracking) rather than distinct pages.
	includeQuery bool
}

// Option configures a Fingerprinter.
type Option func(*Fingerprinter)

// WithQuery includes the sorted query string in state identity. Enable for
// applications that route on query parameters (?page=2, ?tab=settings).
func WithQuery() Option {
	return func(f *Fingerprinter) {
		f.includeQuery = true
	}
}

// New creates a Fingerprinter with the given options.
func New(opts ...Option) *Fingerprinter {
	f := &Fingerprinter{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Capture turns an observation plus its context into an AppState with a
// stable identity. The auth context is part of that identity: the same page
// seen logged-in and logged-out is two states. The caller fills in path and
// depth afterwards; those describe how the state was reached, not what it is.
func (f *Fingerprinter) Capture(obs *model.Observation, viewport model.Viewport, auth model.AuthState, snapshots map[string]model.AdapterSnapshot) *model.AppState {
	normalized := f.NormalizeURL(obs.URL)

	h := sha256.New()
	fmt.Fprintf(h, "url|%s\n", normalized)
	fmt.Fprintf(h, "vp|%s\n", viewport.Name)
	fmt.Fprintf(h, "dom|%s\n", f.structuralDigest(obs))
	fmt.Fprintf(h, "auth|%s\n", auth.Digest())
	fmt.Fprintf(h, "be|%s\n", backendDigest(snapshots))
	sum := h.Sum(nil)

	return &model.AppState{
		Fingerprint: fmt.Sprintf("%x", sum[:16]), // 128-bit identity is enough
		URL:         normalized,
		Title:       obs.Title,
		Viewport:    viewport.Name,
		Auth:        auth,
		Observation: obs,
		Snapshots:   snapshots,
	}
}

// NormalizeURL canonicalizes a URL for identity and visited checks.
//
// Design decision: We normalize URLs because:
//  1. The same page can have different URL representations
//  2. Fragments (#anchor) do not change server-side content
//  3. Query order is meaningless; sorting it keeps ?a=1&b=2 and ?b=2&a=1
//     from minting two states when queries are included
func (f *Fingerprinter) NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Default ports are noise: host:80 and host are the same origin.
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	if u.Path == "" {
		u.Path = "/"
	}

	if !f.includeQuery {
		u.RawQuery = ""
	} else if u.RawQuery != "" {
		q := u.Query()
		u.RawQuery = q.Encode() // Encode sorts keys
	}

	return u.String()
}

// structuralDigest hashes the interactive skeleton of the page: one line per
// visible interactive element carrying its tag, kind, normalized text, and
// stable attributes. Volatile attributes (classes, styles) never reach the
// observation, so they cannot reach the digest.
//
// Lines are sorted before hashing. Identity is over the SET of interactive
// elements: async-loaded navigation that settles in a different order must
// not mint a fresh state.
func (f *Fingerprinter) structuralDigest(obs *model.Observation) string {
	lines := make([]string, 0, len(obs.Elements))
	for _, e := range obs.Elements {
		if !e.Visible {
			continue
		}
		var b strings.Builder
		b.WriteString(e.Tag)
		b.WriteByte('|')
		b.WriteString(string(e.Kind))
		b.WriteByte('|')
		b.WriteString(normalizeText(e.Text))
		b.WriteByte('|')
		b.WriteString(e.ID)
		b.WriteByte('|')
		b.WriteString(e.Name)
		b.WriteByte('|')
		b.WriteString(e.InputType)
		b.WriteByte('|')
		b.WriteString(stripFragment(e.Href))
		b.WriteByte('|')
		b.WriteString(normalizeText(e.AriaLabel))
		if e.Disabled {
			b.WriteString("|disabled")
		}
		lines = append(lines, b.String())
	}
	sort.Strings(lines)

	h := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return fmt.Sprintf("%x", h[:16])
}

// backendDigest folds adapter snapshot digests into one stable string,
// sorted by adapter name. Returns "none" when no adapters are configured so
// the absence of adapters is itself part of the identity input.
func backendDigest(snapshots map[string]model.AdapterSnapshot) string {
	if len(snapshots) == 0 {
		return "none"
	}
	names := make([]string, 0, len(snapshots))
	for name := range snapshots {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+snapshots[name].Digest)
	}
	return strings.Join(parts, ",")
}

// normalizeText canonicalizes element text for hashing: NFKC-normalized,
// case-folded, whitespace-collapsed. Two renders that differ only in Unicode
// composition or letter case describe the same element.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// stripFragment removes the #fragment from an href so in-page anchors on the
// same link target hash identically.
func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}
