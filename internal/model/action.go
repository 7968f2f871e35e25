package model

import (
	"fmt"
	"strings"
)

// ActionType represents the kind of interaction performed on a page element.
type ActionType string

const (
	// ActionClick activates an element: buttons, links, checkboxes, or
	// anything else that responds to a click.
	ActionClick ActionType = "click"

	// ActionFill types a value into a text input or textarea.
	ActionFill ActionType = "fill"

	// ActionSelect chooses an option from a select element.
	ActionSelect ActionType = "select"

	// ActionCheck toggles a checkbox or radio input.
	ActionCheck ActionType = "check"

	// ActionSubmit submits a form, either through its submit control or
	// programmatically when no submit control exists.
	ActionSubmit ActionType = "submit"

	// ActionKeypress sends a key to an element, e.g. Enter on a search box.
	ActionKeypress ActionType = "keypress"

	// ActionHover moves the pointer over an element to trigger hover UI.
	ActionHover ActionType = "hover"

	// ActionNavigate loads a URL directly instead of interacting with an
	// element. Used for the entry URL and for following discovered links.
	ActionNavigate ActionType = "navigate"

	// ActionUnknown is returned when parsing fails.
	ActionUnknown ActionType = "unknown"
)

// ParseActionType converts a string to an ActionType.
// Returns ActionUnknown for unrecognized values.
func ParseActionType(s string) ActionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "click":
		return ActionClick
	case "fill":
		return ActionFill
	case "select":
		return ActionSelect
	case "check":
		return ActionCheck
	case "submit":
		return ActionSubmit
	case "keypress":
		return ActionKeypress
	case "hover":
		return ActionHover
	case "navigate":
		return ActionNavigate
	default:
		return ActionUnknown
	}
}

// IsValid reports whether the action type is one of the known kinds.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionClick, ActionFill, ActionSelect, ActionCheck,
		ActionSubmit, ActionKeypress, ActionHover, ActionNavigate:
		return true
	default:
		return false
	}
}

// String returns the string representation of the action type.
func (t ActionType) String() string {
	return string(t)
}

// Action represents a single concrete interaction: one click, one fill, one
// navigation. A sequence of actions forms a Path, which is how the explorer
// returns to a previously discovered state.
//
// Design decision: Actions are plain data with no reference to live browser
// handles because:
//  1. They must survive page reloads; element handles do not
//  2. They are replayed verbatim during backtracking, so everything needed
//     to re-execute must be in the struct
//  3. They appear in reports and stored runs, so they must serialize cleanly
type Action struct {
	// Type is the kind of interaction.
	Type ActionType `json:"type"`

	// Locator is a CSS selector that identifies the target element on a
	// freshly loaded instance of the page. Empty for navigate actions.
	Locator string `json:"locator,omitempty"`

	// URL is the navigation target. Set only for navigate actions.
	URL string `json:"url,omitempty"`

	// Label is human-readable context for reports: the element's visible
	// text, aria-label, or name attribute.
	Label string `json:"label,omitempty"`

	// Role is the kind of element the action targets ("button", "link",
	// "input"). Used by schema matchers; not part of the action's identity.
	Role string `json:"role,omitempty"`

	// Value is the text typed for fill actions or the option chosen for
	// select actions.
	Value string `json:"value,omitempty"`

	// Destructive marks actions whose label or attributes suggest
	// irreversible effects (delete, remove, clear). Destructive actions are
	// deferred until everything else on the page has been explored.
	Destructive bool `json:"destructive,omitempty"`

	// SchemaName is the name of the action schema that matched this action,
	// if any. Recorded so reports can show which expectations applied.
	SchemaName string `json:"schema_name,omitempty"`
}

// Key returns a stable identity for the action within a state. Two actions
// with the same key on the same state are the same edge in the state graph.
func (a Action) Key() string {
	switch a.Type {
	case ActionNavigate:
		return string(a.Type) + "|" + a.URL
	default:
		return string(a.Type) + "|" + a.Locator + "|" + a.Value
	}
}

// String returns a compact human-readable description for logs and reports.
func (a Action) String() string {
	switch a.Type {
	case ActionNavigate:
		return fmt.Sprintf("navigate %s", a.URL)
	case ActionFill:
		if a.Label != "" {
			return fmt.Sprintf("fill %q with %q", a.Label, a.Value)
		}
		return fmt.Sprintf("fill %s with %q", a.Locator, a.Value)
	case ActionSelect:
		if a.Label != "" {
			return fmt.Sprintf("select %q in %q", a.Value, a.Label)
		}
		return fmt.Sprintf("select %q in %s", a.Value, a.Locator)
	default:
		if a.Label != "" {
			return fmt.Sprintf("%s %q", a.Type, a.Label)
		}
		return fmt.Sprintf("%s %s", a.Type, a.Locator)
	}
}

// Path is an ordered sequence of actions that reaches a state from the entry
// URL. Replaying a path from a fresh page load reproduces the state, which is
// how the explorer backtracks without browser history.
type Path []Action

// String returns the path as a readable arrow-separated sequence.
func (p Path) String() string {
	if len(p) == 0 {
		return "(entry)"
	}
	parts := make([]string, len(p))
	for i, a := range p {
		parts[i] = a.String()
	}
	return strings.Join(parts, " -> ")
}

// Clone returns a copy of the path with its own backing array. Paths are
// extended per discovered state; sharing backing arrays between states would
// let one state's extension overwrite another's.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Extend returns a new path with the action appended, leaving the receiver
// untouched.
func (p Path) Extend(a Action) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, a)
}

// destructiveHints are substrings that mark an action as destructive when
// they appear in its label or locator.
var destructiveHints = []string{
	"delete", "remove", "destroy", "clear", "reset", "drop",
	"erase", "purge", "wipe", "cancel subscription", "deactivate",
}

// IsDestructiveLabel reports whether the label or attribute text suggests an
// irreversible action.
func IsDestructiveLabel(text string) bool {
	lower := strings.ToLower(text)
	for _, hint := range destructiveHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
