package validator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

func TestAccessibility_Validate(t *testing.T) {
	t.Parallel()

	obs := &model.Observation{
		URL: "http://app.test/",
		HTML: `<!DOCTYPE html>
<html>
<body>
<img src="/logo.png">
<img src="/decor.png" alt="">
<form>
  <input type="text" name="title">
  <label for="genre">Genre</label><select id="genre"></select>
  <input type="hidden" name="csrf">
</form>
<button id="blank"></button>
<button>Save</button>
</body>
</html>`,
		DuplicateIDs: []string{"dup"},
		Headings:     []int{1, 3},
	}

	res, err := NewAccessibility().Validate(context.Background(), nil, obs, "desktop")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	byRule := make(map[string][]model.Issue)
	for _, i := range res.Issues {
		byRule[i.Rule] = append(byRule[i.Rule], i)
	}

	tests := []struct {
		rule string
		want int
	}{
		{"img-alt", 1},
		{"form-label", 1},
		{"button-name", 1},
		{"html-lang", 1},
		{"duplicate-id", 1},
		{"heading-order", 1},
	}
	for _, tt := range tests {
		if got := len(byRule[tt.rule]); got != tt.want {
			t.Errorf("rule %s: got %d issue(s), want %d", tt.rule, got, tt.want)
		}
	}

	// The labeled select and hidden input must not be flagged.
	if issues := byRule["form-label"]; len(issues) == 1 {
		if locs := issues[0].Locators; len(locs) != 1 || locs[0] != `input[name="title"]` {
			t.Errorf("form-label locators = %v, want [input[name=\"title\"]]", locs)
		}
	}
	if issues := byRule["button-name"]; len(issues) == 1 {
		if locs := issues[0].Locators; len(locs) != 1 || locs[0] != "#blank" {
			t.Errorf("button-name locators = %v, want [#blank]", locs)
		}
	}
}

func TestAccessibility_CleanPage(t *testing.T) {
	t.Parallel()

	obs := &model.Observation{
		HTML: `<html lang="en"><body>
<img src="/a.png" alt="logo">
<label for="q">Search</label><input id="q" type="text">
<button>Go</button>
</body></html>`,
		Headings: []int{1, 2, 2, 3},
	}

	res, err := NewAccessibility().Validate(context.Background(), nil, obs, "desktop")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(res.Issues) != 0 {
		t.Errorf("clean page produced %d issue(s): %v", len(res.Issues), res.Issues)
	}
}

func TestLinkChecker_Validate(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	obs := &model.Observation{
		URL: srv.URL,
		Links: []model.Link{
			{Href: srv.URL + "/ok", Text: "Fine", Internal: true},
			{Href: srv.URL + "/gone", Text: "Dead", Internal: true},
			{Href: srv.URL + "/slow", Text: "Slow", Internal: true},
			{Href: srv.URL + "/gone", Text: "Dead again", Internal: true}, // duplicate, one probe
			{Href: "https://elsewhere.test/x", Text: "External", Internal: false},
		},
	}

	lc := NewLinkChecker(100*time.Millisecond, 5)
	res, err := lc.Validate(context.Background(), nil, obs, "desktop")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if len(res.Issues) != 2 {
		t.Fatalf("got %d issue(s), want exactly 2: %v", len(res.Issues), res.Issues)
	}

	byRule := make(map[string]model.Issue)
	for _, i := range res.Issues {
		byRule[i.Rule] = i
	}
	broken, ok := byRule["broken-link-404"]
	if !ok {
		t.Fatal("no broken-link-404 issue")
	}
	if broken.Severity != model.SeveritySerious {
		t.Errorf("broken-link severity = %v, want serious", broken.Severity)
	}
	slow, ok := byRule["link-timeout"]
	if !ok {
		t.Fatal("no link-timeout issue")
	}
	if slow.Severity != model.SeverityModerate {
		t.Errorf("timeout severity = %v, want moderate", slow.Severity)
	}
}

// TestLinkChecker_Unreachable covers transport failures that are not
// timeouts: a refused connection is a dead target, not a slow one, and must
// be filed under its own rule.
func TestLinkChecker_Unreachable(t *testing.T) {
	t.Parallel()

	// Start and immediately stop a server so the port is known-dead.
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	obs := &model.Observation{
		URL:   dead,
		Links: []model.Link{{Href: dead + "/page", Text: "Gone", Internal: true}},
	}

	lc := NewLinkChecker(5*time.Second, 5)
	res, err := lc.Validate(context.Background(), nil, obs, "desktop")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(res.Issues) != 1 {
		t.Fatalf("got %d issue(s), want exactly 1: %v", len(res.Issues), res.Issues)
	}
	issue := res.Issues[0]
	if issue.Rule != "link-unreachable" {
		t.Errorf("rule = %q, want link-unreachable", issue.Rule)
	}
	if issue.Severity != model.SeveritySerious {
		t.Errorf("severity = %v, want serious", issue.Severity)
	}
	if issue.Detail != dead+"/page" {
		t.Errorf("detail = %q, want the probed href", issue.Detail)
	}
}

func TestConsole_Validate(t *testing.T) {
	t.Parallel()

	obs := &model.Observation{
		Console: []model.ConsoleEntry{
			{Level: model.ConsoleError, Text: "Uncaught TypeError: x is undefined"},
			{Level: model.ConsoleWarning, Text: "deprecated API"},
			{Level: model.ConsoleLog, Text: "ready"},
		},
		Network: []model.NetworkEvent{
			{Method: "GET", URL: "http://app.test/api/songs", Status: 200},
			{Method: "POST", URL: "http://app.test/api/songs", Status: 500},
			{Method: "GET", URL: "http://app.test/api/old", Status: 404},
			{Method: "GET", URL: "http://app.test/api/down", Failed: true, FailureReason: "net::ERR_CONNECTION_REFUSED"},
		},
	}

	res, err := NewConsole().Validate(context.Background(), nil, obs, "desktop")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	counts := make(map[string]int)
	for _, i := range res.Issues {
		counts[i.Rule]++
	}
	if counts["console-error"] != 1 {
		t.Errorf("console-error = %d, want 1", counts["console-error"])
	}
	if counts["network-error"] != 2 {
		t.Errorf("network-error = %d, want 2 (one 500, one failed)", counts["network-error"])
	}
	if counts["client-error"] != 1 {
		t.Errorf("client-error = %d, want 1", counts["client-error"])
	}
}

func TestLayout_Validate(t *testing.T) {
	t.Parallel()

	t.Run("overflow and invisible", func(t *testing.T) {
		t.Parallel()
		obs := &model.Observation{
			ScrollWidth:   1200,
			ViewportWidth: 375,
			Elements: []model.PageElement{
				{Kind: model.ElementButton, Selector: "#ghost", Visible: false},
				{Kind: model.ElementButton, Selector: "#real", Visible: true},
			},
		}
		res, err := NewLayout().Validate(context.Background(), nil, obs, "mobile")
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		counts := make(map[string]int)
		for _, i := range res.Issues {
			counts[i.Rule]++
		}
		if counts["layout-overflow"] != 1 || counts["invisible-interactive"] != 1 {
			t.Errorf("issues = %v, want one of each rule", res.Issues)
		}
	})

	t.Run("clean", func(t *testing.T) {
		t.Parallel()
		obs := &model.Observation{
			ScrollWidth:   375,
			ViewportWidth: 375,
			Elements:      []model.PageElement{{Selector: "#ok", Visible: true}},
		}
		res, err := NewLayout().Validate(context.Background(), nil, obs, "mobile")
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if len(res.Issues) != 0 {
			t.Errorf("clean page produced issues: %v", res.Issues)
		}
	})
}

func TestRunAll_StampsOrigin(t *testing.T) {
	t.Parallel()

	obs := &model.Observation{
		URL:          "http://app.test/songs",
		DuplicateIDs: []string{"x"},
	}
	issues := RunAll(context.Background(), []Validator{NewAccessibility()}, nil, obs, "desktop", nil)

	// html-lang (empty HTML is skipped, but DuplicateIDs still reports): with
	// no HTML the accessibility validator returns early, so zero issues.
	if len(issues) != 0 {
		t.Fatalf("got %d issues for empty HTML, want 0", len(issues))
	}

	obs.HTML = `<html><body><div id="x"></div><div id="x"></div></body></html>`
	issues = RunAll(context.Background(), []Validator{NewAccessibility()}, nil, obs, "desktop", nil)
	if len(issues) == 0 {
		t.Fatal("expected issues for duplicate ids and missing lang")
	}
	for _, i := range issues {
		if i.Validator != "accessibility" {
			t.Errorf("issue %s Validator = %q, want accessibility", i.Rule, i.Validator)
		}
		if i.Viewport != "desktop" {
			t.Errorf("issue %s Viewport = %q, want desktop", i.Rule, i.Viewport)
		}
		if i.URL != "http://app.test/songs" {
			t.Errorf("issue %s URL = %q, want page URL", i.Rule, i.URL)
		}
	}
}
