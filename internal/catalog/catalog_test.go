package catalog

import (
	"strings"
	"testing"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// TestDiscover tests candidate enumeration from an observation.
func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("enumerates interactive elements", func(t *testing.T) {
		t.Parallel()

		c := New()
		obs := &model.Observation{
			URL: "http://localhost:3000/songs",
			Elements: []model.PageElement{
				{Kind: model.ElementButton, Tag: "button", Selector: "#add", Text: "Add Song", Visible: true},
				{Kind: model.ElementInput, Tag: "input", Selector: "#title", Name: "title", InputType: "text", Visible: true},
				{Kind: model.ElementSelect, Tag: "select", Selector: "#genre", Options: []string{"", "rock", "jazz"}, Visible: true},
				{Kind: model.ElementCheckbox, Tag: "input", Selector: "#fav", InputType: "checkbox", Visible: true},
				{Kind: model.ElementLink, Tag: "a", Selector: "a.albums", Text: "Albums", Href: "/albums", Visible: true},
			},
			Forms: []model.Form{
				{Selector: "form#new-song", Method: "post"},
			},
		}

		actions := c.Discover(obs)
		if len(actions) != 6 {
			t.Fatalf("Discover() yielded %d actions, expected 6: %v", len(actions), actions)
		}

		byType := make(map[model.ActionType]int)
		for _, a := range actions {
			byType[a.Type]++
		}
		if byType[model.ActionClick] != 2 {
			t.Errorf("click actions = %d, expected 2 (button + link)", byType[model.ActionClick])
		}
		if byType[model.ActionFill] != 1 {
			t.Errorf("fill actions = %d, expected 1", byType[model.ActionFill])
		}
		if byType[model.ActionSelect] != 1 {
			t.Errorf("select actions = %d, expected 1", byType[model.ActionSelect])
		}
		if byType[model.ActionCheck] != 1 {
			t.Errorf("check actions = %d, expected 1", byType[model.ActionCheck])
		}
		if byType[model.ActionSubmit] != 1 {
			t.Errorf("submit actions = %d, expected 1", byType[model.ActionSubmit])
		}
	})

	t.Run("skips invisible and disabled elements", func(t *testing.T) {
		t.Parallel()

		c := New()
		obs := &model.Observation{
			Elements: []model.PageElement{
				{Kind: model.ElementButton, Selector: "#hidden", Text: "Ghost", Visible: false},
				{Kind: model.ElementButton, Selector: "#off", Text: "Disabled", Visible: true, Disabled: true},
				{Kind: model.ElementButton, Selector: "#ok", Text: "Fine", Visible: true},
			},
		}

		actions := c.Discover(obs)
		if len(actions) != 1 {
			t.Fatalf("Discover() yielded %d actions, expected 1", len(actions))
		}
		if actions[0].Locator != "#ok" {
			t.Errorf("kept action locator = %q, expected #ok", actions[0].Locator)
		}
	})

	t.Run("honors ignore list by selector and label", func(t *testing.T) {
		t.Parallel()

		c := New(WithIgnoreList([]string{"#logout", "sign out"}))
		obs := &model.Observation{
			Elements: []model.PageElement{
				{Kind: model.ElementButton, Selector: "#logout", Text: "Logout", Visible: true},
				{Kind: model.ElementButton, Selector: "#bye", Text: "Sign Out", Visible: true},
				{Kind: model.ElementButton, Selector: "#add", Text: "Add", Visible: true},
			},
		}

		actions := c.Discover(obs)
		if len(actions) != 1 {
			t.Fatalf("Discover() yielded %d actions, expected 1: %v", len(actions), actions)
		}
		if actions[0].Locator != "#add" {
			t.Errorf("kept action locator = %q, expected #add", actions[0].Locator)
		}
	})

	t.Run("skips external and pseudo links", func(t *testing.T) {
		t.Parallel()

		c := New(WithBaseHost("localhost:3000"))
		obs := &model.Observation{
			Elements: []model.PageElement{
				{Kind: model.ElementLink, Selector: "a.in", Href: "/songs", Visible: true},
				{Kind: model.ElementLink, Selector: "a.abs", Href: "http://localhost:3000/albums", Visible: true},
				{Kind: model.ElementLink, Selector: "a.ext", Href: "https://example.com/docs", Visible: true},
				{Kind: model.ElementLink, Selector: "a.mail", Href: "mailto:a@b.c", Visible: true},
				{Kind: model.ElementLink, Selector: "a.js", Href: "javascript:void(0)", Visible: true},
				{Kind: model.ElementLink, Selector: "a.anchor", Href: "", Visible: true},
			},
		}

		actions := c.Discover(obs)
		if len(actions) != 2 {
			t.Fatalf("Discover() yielded %d actions, expected 2: %v", len(actions), actions)
		}
		if actions[0].Locator != "a.in" || actions[1].Locator != "a.abs" {
			t.Errorf("kept wrong links: %v", actions)
		}
	})

	t.Run("marks destructive actions from labels", func(t *testing.T) {
		t.Parallel()

		c := New()
		obs := &model.Observation{
			Elements: []model.PageElement{
				{Kind: model.ElementButton, Selector: "#del", Text: "Delete Song", Visible: true},
				{Kind: model.ElementButton, Selector: "#add", Text: "Add Song", Visible: true},
			},
		}

		actions := c.Discover(obs)
		if !actions[0].Destructive {
			t.Error("Delete Song not marked destructive")
		}
		if actions[1].Destructive {
			t.Error("Add Song wrongly marked destructive")
		}
	})
}

// TestPrioritize tests exploration ordering and the per-state cap.
func TestPrioritize(t *testing.T) {
	t.Parallel()

	t.Run("destructive actions run last", func(t *testing.T) {
		t.Parallel()

		c := New()
		actions := []model.Action{
			{Type: model.ActionClick, Locator: "#del", Label: "Delete", Destructive: true},
			{Type: model.ActionClick, Locator: "#a", Label: "A"},
			{Type: model.ActionClick, Locator: "#b", Label: "B"},
			{Type: model.ActionClick, Locator: "#c", Label: "C"},
		}

		got := c.Prioritize(actions)
		if len(got) != 4 {
			t.Fatalf("Prioritize() len = %d, expected 4", len(got))
		}
		if !got[3].Destructive {
			t.Errorf("destructive action not last: %v", got)
		}
		for i := 0; i < 3; i++ {
			if got[i].Destructive {
				t.Errorf("destructive action at position %d, expected last", i)
			}
		}
	})

	t.Run("forms before links and schema-matched first", func(t *testing.T) {
		t.Parallel()

		c := New(WithSchemaMatcher(func(a model.Action) (string, bool) {
			if a.Locator == "#special" {
				return "add-song", true
			}
			return "", false
		}))
		actions := []model.Action{
			{Type: model.ActionClick, Locator: "a.nav", Label: "Nav link"},
			{Type: model.ActionFill, Locator: "#title", Value: "x"},
			{Type: model.ActionClick, Locator: "#special", Label: "Add Song"},
			{Type: model.ActionSubmit, Locator: "form#f"},
		}

		got := c.Prioritize(actions)
		if got[0].Locator != "#special" {
			t.Errorf("schema-matched action not first: %v", got)
		}
		if got[0].SchemaName != "add-song" {
			t.Errorf("schema name not stamped: %q", got[0].SchemaName)
		}
		// Form interactions before the plain link.
		if got[1].Type != model.ActionFill || got[2].Type != model.ActionSubmit {
			t.Errorf("form interactions not before links: %v", got)
		}
		if got[3].Locator != "a.nav" {
			t.Errorf("plain link not last among non-destructive: %v", got)
		}
	})

	t.Run("document order preserved within a class", func(t *testing.T) {
		t.Parallel()

		c := New()
		actions := []model.Action{
			{Type: model.ActionClick, Locator: "#first"},
			{Type: model.ActionClick, Locator: "#second"},
			{Type: model.ActionClick, Locator: "#third"},
		}

		got := c.Prioritize(actions)
		for i, want := range []string{"#first", "#second", "#third"} {
			if got[i].Locator != want {
				t.Errorf("position %d = %q, expected %q", i, got[i].Locator, want)
			}
		}
	})

	t.Run("cap truncates after ordering", func(t *testing.T) {
		t.Parallel()

		c := New(WithMaxActions(2))
		actions := []model.Action{
			{Type: model.ActionClick, Locator: "#del", Destructive: true},
			{Type: model.ActionClick, Locator: "#a"},
			{Type: model.ActionClick, Locator: "#b"},
			{Type: model.ActionClick, Locator: "#c"},
		}

		got := c.Prioritize(actions)
		if len(got) != 2 {
			t.Fatalf("Prioritize() len = %d, expected cap of 2", len(got))
		}
		// The deferred destructive action falls off the capped list before
		// safe actions do.
		for _, a := range got {
			if a.Destructive {
				t.Error("destructive action survived the cap ahead of safe actions")
			}
		}
	})

	t.Run("input does not get mutated", func(t *testing.T) {
		t.Parallel()

		c := New(WithSchemaMatcher(func(a model.Action) (string, bool) {
			return "s", true
		}))
		actions := []model.Action{{Type: model.ActionClick, Locator: "#a"}}
		_ = c.Prioritize(actions)
		if actions[0].SchemaName != "" {
			t.Error("Prioritize mutated its input slice")
		}
	})
}

// TestValueForInput tests deterministic fill-value generation.
func TestValueForInput(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		inputType string
		name      string
		expected  string
	}{
		{"email", "email", "qa.explorer@example.com"},
		{"password", "pass", "Str0ngTestPass!"},
		{"number", "qty", "42"},
		{"tel", "phone", "555-0117"},
		{"date", "released", "2024-06-01"},
		{"text", "song_title", "Test Song Title"},
		{"text", "", "Test Value"},
		{"search", "q", "Test Q"},
		{"hidden", "csrf", ""},
		{"file", "upload", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.inputType+"/"+tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ValueForInput(tc.inputType, tc.name); got != tc.expected {
				t.Errorf("ValueForInput(%q, %q) = %q, expected %q", tc.inputType, tc.name, got, tc.expected)
			}
		})
	}

	t.Run("same field always gets the same value", func(t *testing.T) {
		t.Parallel()
		a := ValueForInput("text", "title")
		b := ValueForInput("text", "title")
		if a != b {
			t.Errorf("value generation not deterministic: %q vs %q", a, b)
		}
	})
}

// TestDiscoverSelectSkipsPlaceholder tests that blank select options are not
// chosen.
func TestDiscoverSelectSkipsPlaceholder(t *testing.T) {
	t.Parallel()

	c := New()
	obs := &model.Observation{
		Elements: []model.PageElement{
			{Kind: model.ElementSelect, Selector: "#genre", Options: []string{"", "  ", "rock"}, Visible: true},
			{Kind: model.ElementSelect, Selector: "#empty", Options: []string{""}, Visible: true},
		},
	}

	actions := c.Discover(obs)
	if len(actions) != 1 {
		t.Fatalf("Discover() yielded %d actions, expected 1", len(actions))
	}
	if actions[0].Value != "rock" {
		t.Errorf("selected value = %q, expected %q", actions[0].Value, "rock")
	}
	if !strings.Contains(actions[0].Locator, "#genre") {
		t.Errorf("locator = %q, expected #genre", actions[0].Locator)
	}
}
