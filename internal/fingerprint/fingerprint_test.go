package fingerprint

import (
	"fmt"
	"testing"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// anon is the unauthenticated context most tests observe under.
var anon = model.AuthState{}

// testObservation builds a small observation with two interactive elements.
func testObservation() *model.Observation {
	return &model.Observation{
		URL:   "http://localhost:3000/songs",
		Title: "Songs",
		Elements: []model.PageElement{
			{Kind: model.ElementButton, Tag: "button", Selector: "#add", Text: "Add Song", ID: "add", Visible: true},
			{Kind: model.ElementInput, Tag: "input", Selector: "#title", Name: "title", InputType: "text", Visible: true},
		},
	}
}

// TestCaptureDeterminism tests that identical inputs always produce the same
// identity, including across separately constructed observations.
func TestCaptureDeterminism(t *testing.T) {
	t.Parallel()

	f := New()
	vp := model.DefaultViewport

	first := f.Capture(testObservation(), vp, anon, nil)
	for i := 0; i < 50; i++ {
		again := f.Capture(testObservation(), vp, anon, nil)
		if again.Fingerprint != first.Fingerprint {
			t.Fatalf("iteration %d: fingerprint %q != %q for identical input", i, again.Fingerprint, first.Fingerprint)
		}
	}

	if len(first.Fingerprint) != 32 {
		t.Errorf("fingerprint length = %d, expected 32 hex chars (128 bits)", len(first.Fingerprint))
	}
}

// TestCaptureDeterminismProperty tests identity determinism over generated
// observations: any two observations with identical URL, viewport, element
// digest, and backend digest must collapse to the same id.
func TestCaptureDeterminismProperty(t *testing.T) {
	t.Parallel()

	f := New()
	vp := model.Viewport{Name: "mobile", Width: 375, Height: 667}

	for n := 0; n < 20; n++ {
		obs := &model.Observation{URL: fmt.Sprintf("http://localhost:3000/page/%d", n)}
		for e := 0; e <= n%5; e++ {
			obs.Elements = append(obs.Elements, model.PageElement{
				Kind: model.ElementLink, Tag: "a",
				Selector: fmt.Sprintf("a:nth-of-type(%d)", e+1),
				Text:     fmt.Sprintf("Link %d", e),
				Href:     fmt.Sprintf("/target/%d", e),
				Visible:  true,
			})
		}
		snaps := map[string]model.AdapterSnapshot{
			"database": {Adapter: "database", Digest: fmt.Sprintf("digest-%d", n%3)},
		}

		twin := &model.Observation{URL: obs.URL, Elements: append([]model.PageElement(nil), obs.Elements...)}
		a := f.Capture(obs, vp, anon, snaps)
		b := f.Capture(twin, vp, anon, map[string]model.AdapterSnapshot{
			"database": {Adapter: "database", Digest: fmt.Sprintf("digest-%d", n%3)},
		})
		if a.Fingerprint != b.Fingerprint {
			t.Errorf("case %d: twin observations produced different ids %q vs %q", n, a.Fingerprint, b.Fingerprint)
		}
	}
}

// TestCaptureDistinguishes tests that each identity component changes the
// fingerprint when it changes.
func TestCaptureDistinguishes(t *testing.T) {
	t.Parallel()

	f := New()
	vp := model.DefaultViewport
	base := f.Capture(testObservation(), vp, anon, nil)

	t.Run("different URL", func(t *testing.T) {
		t.Parallel()
		obs := testObservation()
		obs.URL = "http://localhost:3000/albums"
		if f.Capture(obs, vp, anon, nil).Fingerprint == base.Fingerprint {
			t.Error("different URLs produced the same identity")
		}
	})

	t.Run("different element set", func(t *testing.T) {
		t.Parallel()
		obs := testObservation()
		obs.Elements = append(obs.Elements, model.PageElement{
			Kind: model.ElementButton, Tag: "button", Selector: "#del", Text: "Delete", Visible: true,
		})
		if f.Capture(obs, vp, anon, nil).Fingerprint == base.Fingerprint {
			t.Error("different element sets produced the same identity")
		}
	})

	t.Run("different viewport", func(t *testing.T) {
		t.Parallel()
		mobile := model.Viewport{Name: "mobile", Width: 375, Height: 667}
		if f.Capture(testObservation(), mobile, anon, nil).Fingerprint == base.Fingerprint {
			t.Error("different viewports produced the same identity")
		}
	})

	t.Run("different backend digest", func(t *testing.T) {
		t.Parallel()
		before := f.Capture(testObservation(), vp, anon, map[string]model.AdapterSnapshot{
			"database": {Adapter: "database", Digest: "rows-5"},
		})
		after := f.Capture(testObservation(), vp, anon, map[string]model.AdapterSnapshot{
			"database": {Adapter: "database", Digest: "rows-6"},
		})
		if before.Fingerprint == after.Fingerprint {
			t.Error("different backend digests produced the same identity")
		}
	})

	t.Run("auth context changes identity", func(t *testing.T) {
		t.Parallel()
		authed := model.AuthState{Authenticated: true, UserID: "u1", Role: "admin"}
		got := f.Capture(testObservation(), vp, authed, nil)
		if got.Fingerprint == base.Fingerprint {
			t.Error("authenticated and anonymous captures produced the same identity")
		}
		if got.Auth != authed {
			t.Errorf("captured Auth = %+v, want %+v", got.Auth, authed)
		}
		again := f.Capture(testObservation(), vp, authed, nil)
		if again.Fingerprint != got.Fingerprint {
			t.Error("identical auth contexts produced different identities")
		}
	})

	t.Run("different user changes identity", func(t *testing.T) {
		t.Parallel()
		one := f.Capture(testObservation(), vp, model.AuthState{Authenticated: true, UserID: "u1"}, nil)
		two := f.Capture(testObservation(), vp, model.AuthState{Authenticated: true, UserID: "u2"}, nil)
		if one.Fingerprint == two.Fingerprint {
			t.Error("different users produced the same identity")
		}
	})

	t.Run("adapter presence changes identity", func(t *testing.T) {
		t.Parallel()
		with := f.Capture(testObservation(), vp, anon, map[string]model.AdapterSnapshot{
			"database": {Adapter: "database", Digest: "rows-5"},
		})
		if with.Fingerprint == base.Fingerprint {
			t.Error("adding a backend snapshot did not change the identity")
		}
	})
}

// TestCaptureIgnoresVolatileContent tests that render churn does not mint
// new states.
func TestCaptureIgnoresVolatileContent(t *testing.T) {
	t.Parallel()

	f := New()
	vp := model.DefaultViewport
	base := f.Capture(testObservation(), vp, anon, nil)

	t.Run("URL fragment is ignored", func(t *testing.T) {
		t.Parallel()
		obs := testObservation()
		obs.URL = "http://localhost:3000/songs#section-2"
		if f.Capture(obs, vp, anon, nil).Fingerprint != base.Fingerprint {
			t.Error("fragment changed the identity")
		}
	})

	t.Run("default port is ignored", func(t *testing.T) {
		t.Parallel()
		a := testObservation()
		a.URL = "http://example.com:80/songs"
		b := testObservation()
		b.URL = "http://example.com/songs"
		if f.Capture(a, vp, anon, nil).Fingerprint != f.Capture(b, vp, anon, nil).Fingerprint {
			t.Error("default port changed the identity")
		}
	})

	t.Run("query is ignored by default", func(t *testing.T) {
		t.Parallel()
		obs := testObservation()
		obs.URL = "http://localhost:3000/songs?utm_source=mail"
		if f.Capture(obs, vp, anon, nil).Fingerprint != base.Fingerprint {
			t.Error("query string changed the identity with queries excluded")
		}
	})

	t.Run("invisible elements are excluded", func(t *testing.T) {
		t.Parallel()
		obs := testObservation()
		obs.Elements = append(obs.Elements, model.PageElement{
			Kind: model.ElementButton, Tag: "button", Selector: "#hidden", Text: "Ghost", Visible: false,
		})
		if f.Capture(obs, vp, anon, nil).Fingerprint != base.Fingerprint {
			t.Error("invisible element changed the identity")
		}
	})

	t.Run("element order does not matter", func(t *testing.T) {
		t.Parallel()
		obs := testObservation()
		obs.Elements[0], obs.Elements[1] = obs.Elements[1], obs.Elements[0]
		if f.Capture(obs, vp, anon, nil).Fingerprint != base.Fingerprint {
			t.Error("element order changed the identity")
		}
	})

	t.Run("unicode composition does not matter", func(t *testing.T) {
		t.Parallel()
		nfc := testObservation()
		nfc.Elements[0].Text = "Café" // precomposed é
		nfd := testObservation()
		nfd.Elements[0].Text = "Café" // e + combining acute
		if f.Capture(nfc, vp, anon, nil).Fingerprint != f.Capture(nfd, vp, anon, nil).Fingerprint {
			t.Error("unicode composition form changed the identity")
		}
	})

	t.Run("title does not affect identity", func(t *testing.T) {
		t.Parallel()
		obs := testObservation()
		obs.Title = "Songs (3 new)"
		if f.Capture(obs, vp, anon, nil).Fingerprint != base.Fingerprint {
			t.Error("document title changed the identity")
		}
	})
}

// TestWithQuery tests the query-inclusion option.
func TestWithQuery(t *testing.T) {
	t.Parallel()

	f := New(WithQuery())
	vp := model.DefaultViewport

	a := testObservation()
	a.URL = "http://localhost:3000/songs?page=1"
	b := testObservation()
	b.URL = "http://localhost:3000/songs?page=2"
	if f.Capture(a, vp, anon, nil).Fingerprint == f.Capture(b, vp, anon, nil).Fingerprint {
		t.Error("different query values produced the same identity with queries included")
	}

	// Parameter order is still canonicalized.
	c := testObservation()
	c.URL = "http://localhost:3000/songs?a=1&b=2"
	d := testObservation()
	d.URL = "http://localhost:3000/songs?b=2&a=1"
	if f.Capture(c, vp, anon, nil).Fingerprint != f.Capture(d, vp, anon, nil).Fingerprint {
		t.Error("query parameter order changed the identity")
	}
}

// TestNormalizeURL tests URL canonicalization.
func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	f := New()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "fragment removed",
			input:    "http://localhost:3000/songs#top",
			expected: "http://localhost:3000/songs",
		},
		{
			name:     "host lowercased",
			input:    "http://LOCALHOST:3000/songs",
			expected: "http://localhost:3000/songs",
		},
		{
			name:     "empty path becomes root",
			input:    "http://localhost:3000",
			expected: "http://localhost:3000/",
		},
		{
			name:     "default http port dropped",
			input:    "http://example.com:80/x",
			expected: "http://example.com/x",
		},
		{
			name:     "default https port dropped",
			input:    "https://example.com:443/x",
			expected: "https://example.com/x",
		},
		{
			name:     "non-default port kept",
			input:    "http://localhost:3000/x",
			expected: "http://localhost:3000/x",
		},
		{
			name:     "query dropped by default",
			input:    "http://localhost:3000/x?b=2&a=1",
			expected: "http://localhost:3000/x",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := f.NormalizeURL(tc.input); got != tc.expected {
				t.Errorf("NormalizeURL(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}
