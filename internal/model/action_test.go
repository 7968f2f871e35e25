package model

import (
	"strings"
	"testing"
)

// TestParseActionType tests the ParseActionType function.
func TestParseActionType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected ActionType
	}{
		{"click", ActionClick},
		{"fill", ActionFill},
		{"select", ActionSelect},
		{"check", ActionCheck},
		{"submit", ActionSubmit},
		{"keypress", ActionKeypress},
		{"hover", ActionHover},
		{"navigate", ActionNavigate},
		{"CLICK", ActionClick},
		{"  fill  ", ActionFill},
		{"drag", ActionUnknown},
		{"", ActionUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			if got := ParseActionType(tc.input); got != tc.expected {
				t.Errorf("ParseActionType(%q) = %v, expected %v", tc.input, got, tc.expected)
			}
		})
	}
}

// TestActionTypeIsValid tests the IsValid method of ActionType.
func TestActionTypeIsValid(t *testing.T) {
	t.Parallel()

	valid := []ActionType{
		ActionClick, ActionFill, ActionSelect, ActionCheck,
		ActionSubmit, ActionKeypress, ActionHover, ActionNavigate,
	}
	for _, at := range valid {
		if !at.IsValid() {
			t.Errorf("%v.IsValid() = false, expected true", at)
		}
	}
	if ActionUnknown.IsValid() {
		t.Error("ActionUnknown.IsValid() = true, expected false")
	}
	if ActionType("drag").IsValid() {
		t.Error(`ActionType("drag").IsValid() = true, expected false`)
	}
}

// TestActionKey tests that Key distinguishes distinct actions and is stable
// for identical ones.
func TestActionKey(t *testing.T) {
	t.Parallel()

	t.Run("same action yields same key", func(t *testing.T) {
		t.Parallel()

		a := Action{Type: ActionClick, Locator: "#add-song"}
		b := Action{Type: ActionClick, Locator: "#add-song"}
		if a.Key() != b.Key() {
			t.Errorf("identical actions produced different keys: %q vs %q", a.Key(), b.Key())
		}
	})

	t.Run("different locator yields different key", func(t *testing.T) {
		t.Parallel()

		a := Action{Type: ActionClick, Locator: "#add-song"}
		b := Action{Type: ActionClick, Locator: "#delete-song"}
		if a.Key() == b.Key() {
			t.Error("different locators produced the same key")
		}
	})

	t.Run("different value yields different key", func(t *testing.T) {
		t.Parallel()

		a := Action{Type: ActionFill, Locator: "#title", Value: "alpha"}
		b := Action{Type: ActionFill, Locator: "#title", Value: "beta"}
		if a.Key() == b.Key() {
			t.Error("different fill values produced the same key")
		}
	})

	t.Run("navigate key uses URL", func(t *testing.T) {
		t.Parallel()

		a := Action{Type: ActionNavigate, URL: "http://localhost:3000/songs"}
		b := Action{Type: ActionNavigate, URL: "http://localhost:3000/albums"}
		if a.Key() == b.Key() {
			t.Error("different navigation targets produced the same key")
		}
	})
}

// TestActionString tests the String method of Action.
func TestActionString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		action   Action
		contains string
	}{
		{
			name:     "click with label",
			action:   Action{Type: ActionClick, Locator: "#add", Label: "Add Song"},
			contains: `click "Add Song"`,
		},
		{
			name:     "click without label falls back to locator",
			action:   Action{Type: ActionClick, Locator: "#add"},
			contains: "click #add",
		},
		{
			name:     "fill shows value",
			action:   Action{Type: ActionFill, Locator: "#title", Label: "Title", Value: "Bohemian Rhapsody"},
			contains: `"Bohemian Rhapsody"`,
		},
		{
			name:     "navigate shows URL",
			action:   Action{Type: ActionNavigate, URL: "http://localhost:3000/"},
			contains: "navigate http://localhost:3000/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.action.String(); !strings.Contains(got, tc.contains) {
				t.Errorf("String() = %q, expected it to contain %q", got, tc.contains)
			}
		})
	}
}

// TestPathExtend tests that Extend does not share backing arrays between
// paths.
func TestPathExtend(t *testing.T) {
	t.Parallel()

	base := Path{
		{Type: ActionNavigate, URL: "http://localhost:3000/"},
	}
	first := base.Extend(Action{Type: ActionClick, Locator: "#a"})
	second := base.Extend(Action{Type: ActionClick, Locator: "#b"})

	if len(base) != 1 {
		t.Fatalf("base path mutated: len = %d, expected 1", len(base))
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("extended paths have wrong length: %d, %d", len(first), len(second))
	}
	if first[1].Locator != "#a" {
		t.Errorf("first extension overwritten: locator = %q, expected %q", first[1].Locator, "#a")
	}
	if second[1].Locator != "#b" {
		t.Errorf("second extension wrong: locator = %q, expected %q", second[1].Locator, "#b")
	}
}

// TestPathClone tests the Clone method of Path.
func TestPathClone(t *testing.T) {
	t.Parallel()

	t.Run("nil clones to nil", func(t *testing.T) {
		t.Parallel()
		var p Path
		if got := p.Clone(); got != nil {
			t.Errorf("Clone() of nil = %v, expected nil", got)
		}
	})

	t.Run("clone is independent", func(t *testing.T) {
		t.Parallel()
		p := Path{{Type: ActionClick, Locator: "#x"}}
		c := p.Clone()
		c[0].Locator = "#y"
		if p[0].Locator != "#x" {
			t.Error("mutating clone changed the original path")
		}
	})
}

// TestPathString tests the String method of Path.
func TestPathString(t *testing.T) {
	t.Parallel()

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()
		if got := (Path{}).String(); got != "(entry)" {
			t.Errorf("String() = %q, expected %q", got, "(entry)")
		}
	})

	t.Run("actions joined with arrows", func(t *testing.T) {
		t.Parallel()
		p := Path{
			{Type: ActionClick, Label: "Songs"},
			{Type: ActionClick, Label: "Add"},
		}
		got := p.String()
		if !strings.Contains(got, " -> ") {
			t.Errorf("String() = %q, expected arrow separator", got)
		}
	})
}

// TestIsDestructiveLabel tests the IsDestructiveLabel function.
func TestIsDestructiveLabel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		text     string
		expected bool
	}{
		{"Delete Song", true},
		{"Remove from playlist", true},
		{"DESTROY", true},
		{"Clear all", true},
		{"Reset form", true},
		{"Add Song", false},
		{"Save", false},
		{"Submit", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()
			if got := IsDestructiveLabel(tc.text); got != tc.expected {
				t.Errorf("IsDestructiveLabel(%q) = %v, expected %v", tc.text, got, tc.expected)
			}
		})
	}
}
