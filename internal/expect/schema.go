package expect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// MatchPredicate is the programmatic escape hatch for matching: a
// caller-supplied function consulted after the declarative criteria.
//
// Predicates are inherently non-serializable and non-sandboxable, so they
// can only be set from code, never from a loaded schema file.
type MatchPredicate func(action model.Action, pageURL string) bool

// Matcher selects the actions a schema applies to. All specified criteria
// must hold (AND); unspecified criteria are ignored. A matcher must specify
// at least one criterion or carry a predicate.
type Matcher struct {
	// Selector matches actions whose locator contains this string.
	Selector string `yaml:"selector,omitempty" json:"selector,omitempty"`

	// Text is a regular expression matched against the action's label.
	Text string `yaml:"text,omitempty" json:"text,omitempty"`

	// Role matches the kind of element the action targets: "button",
	// "link", "input", "select", "checkbox", "form".
	Role string `yaml:"role,omitempty" json:"role,omitempty"`

	// URL is a regular expression matched against the page URL the action
	// is found on.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Predicate is consulted last when set. Never loaded from YAML.
	Predicate MatchPredicate `yaml:"-" json:"-"`

	textRe *regexp.Regexp
	urlRe  *regexp.Regexp
}

// compile validates the matcher and pre-compiles its patterns.
func (m *Matcher) compile() error {
	if m.Selector == "" && m.Text == "" && m.Role == "" && m.URL == "" && m.Predicate == nil {
		return ErrEmptyMatcher
	}
	var err error
	if m.Text != "" {
		if m.textRe, err = regexp.Compile(m.Text); err != nil {
			return fmt.Errorf("%w: text %q: %v", ErrInvalidPattern, m.Text, err)
		}
	}
	if m.URL != "" {
		if m.urlRe, err = regexp.Compile(m.URL); err != nil {
			return fmt.Errorf("%w: url %q: %v", ErrInvalidPattern, m.URL, err)
		}
	}
	return nil
}

// Matches reports whether the action on the given page satisfies every
// specified criterion.
func (m *Matcher) Matches(action model.Action, pageURL string) bool {
	if m.Selector != "" && !strings.Contains(action.Locator, m.Selector) {
		return false
	}
	if m.Text != "" {
		re := m.textRe
		if re == nil {
			var err error
			if re, err = regexp.Compile(m.Text); err != nil {
				return false
			}
		}
		if !re.MatchString(action.Label) {
			return false
		}
	}
	if m.Role != "" && !strings.EqualFold(m.Role, action.Role) {
		return false
	}
	if m.URL != "" {
		re := m.urlRe
		if re == nil {
			var err error
			if re, err = regexp.Compile(m.URL); err != nil {
				return false
			}
		}
		if !re.MatchString(pageURL) {
			return false
		}
	}
	if m.Predicate != nil && !m.Predicate(action, pageURL) {
		return false
	}
	return true
}

// SetupStep is one pre-action interaction: filling the form field the
// matched action will submit, dismissing a banner that covers it.
type SetupStep struct {
	// Action is the interaction kind: fill (default), select, check, click.
	Action string `yaml:"action,omitempty" json:"action,omitempty"`

	// Locator is the CSS selector of the step's target element.
	Locator string `yaml:"locator" json:"locator"`

	// Value is the text or option for fill/select steps. May contain
	// {{testData.KEY}} placeholders, resolved at load time.
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Optional steps swallow their own failure; required steps abort the
	// whole action attempt when they fail.
	Optional bool `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// ToAction converts the step into an executable action.
func (s SetupStep) ToAction() model.Action {
	t := model.ParseActionType(s.Action)
	if t == model.ActionUnknown {
		t = model.ActionFill
	}
	return model.Action{Type: t, Locator: s.Locator, Value: s.Value}
}

// ExpectationKind dispatches how an expectation is checked.
type ExpectationKind string

const (
	// ExpectDatabase delegates to a database adapter's verify.
	ExpectDatabase ExpectationKind = "database"

	// ExpectAPI checks the page's network log for a matching request.
	ExpectAPI ExpectationKind = "api"

	// ExpectUI checks the live page directly: visibility, text, URL.
	ExpectUI ExpectationKind = "ui"

	// ExpectService delegates to a named service adapter's verify.
	ExpectService ExpectationKind = "service"
)

// Database change kinds.
const (
	ChangeRowAdded   = "row-added"
	ChangeRowRemoved = "row-removed"
	ChangeModified   = "modified"
	ChangeUnchanged  = "unchanged"
)

// UI conditions.
const (
	CondVisible = "visible"
	CondHidden  = "hidden"
	CondText    = "text"
	CondURL     = "url"
)

// Expectation is one declared side effect of an action. Exactly the fields
// for its kind are set; the rest stay zero.
type Expectation struct {
	// Kind selects the check: database, api, ui, or service.
	Kind ExpectationKind `yaml:"kind" json:"kind"`

	// Adapter names the backend adapter for database/service kinds.
	// Defaults to "database" for the database kind.
	Adapter string `yaml:"adapter,omitempty" json:"adapter,omitempty"`

	// Table and Change describe a database-kind check: the table to
	// inspect and the delta expected (row-added, row-removed, modified,
	// unchanged).
	Table  string `yaml:"table,omitempty" json:"table,omitempty"`
	Change string `yaml:"change,omitempty" json:"change,omitempty"`

	// Where restricts database row matching to columns equal to these
	// values. Values may contain {{testData.KEY}} placeholders.
	Where map[string]string `yaml:"where,omitempty" json:"where,omitempty"`

	// Check carries free-form criteria for service-kind adapters.
	Check map[string]string `yaml:"check,omitempty" json:"check,omitempty"`

	// Method, URL, and Status describe an api-kind check: an HTTP request
	// the page must have issued. URL is a regular expression; Status is an
	// exact code ("201") or a class ("2xx").
	Method string `yaml:"method,omitempty" json:"method,omitempty"`
	URL    string `yaml:"url,omitempty" json:"url,omitempty"`
	Status string `yaml:"status,omitempty" json:"status,omitempty"`

	// Selector, Condition, and Text describe a ui-kind check on the live
	// page: visible, hidden, text (regex against element text), or url
	// (URL field regex against the page URL).
	Selector  string `yaml:"selector,omitempty" json:"selector,omitempty"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
	Text      string `yaml:"text,omitempty" json:"text,omitempty"`
}

// Describe returns the expectation as a short human-readable clause used in
// verification results and reports.
func (e Expectation) Describe() string {
	switch e.Kind {
	case ExpectDatabase:
		desc := fmt.Sprintf("database: %s in %s", e.Change, e.Table)
		if len(e.Where) > 0 {
			desc += " where " + formatWhere(e.Where)
		}
		return desc
	case ExpectAPI:
		m := e.Method
		if m == "" {
			m = "any"
		}
		return fmt.Sprintf("api: %s %s -> %s", m, e.URL, e.Status)
	case ExpectUI:
		switch e.Condition {
		case CondText:
			return fmt.Sprintf("ui: %s text matches %q", e.Selector, e.Text)
		case CondURL:
			return fmt.Sprintf("ui: page url matches %q", e.URL)
		default:
			return fmt.Sprintf("ui: %s %s", e.Selector, e.Condition)
		}
	case ExpectService:
		return fmt.Sprintf("service: %s check", e.Adapter)
	default:
		return string(e.Kind)
	}
}

// formatWhere renders a where clause deterministically, keys sorted.
func formatWhere(where map[string]string) string {
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + where[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// validate checks kind-specific required fields.
func (e *Expectation) validate() error {
	switch e.Kind {
	case ExpectDatabase:
		if e.Adapter == "" {
			e.Adapter = "database"
		}
		if e.Table == "" {
			return fmt.Errorf("database expectation requires a table")
		}
		if e.Change == "" {
			e.Change = ChangeRowAdded
		}
		switch e.Change {
		case ChangeRowAdded, ChangeRowRemoved, ChangeModified, ChangeUnchanged:
		default:
			return fmt.Errorf("unknown change kind %q", e.Change)
		}
	case ExpectAPI:
		if e.URL == "" {
			return fmt.Errorf("api expectation requires a url pattern")
		}
		if _, err := regexp.Compile(e.URL); err != nil {
			return fmt.Errorf("%w: url %q: %v", ErrInvalidPattern, e.URL, err)
		}
		if e.Status == "" {
			e.Status = "2xx"
		}
	case ExpectUI:
		if e.Condition == "" {
			e.Condition = CondVisible
		}
		switch e.Condition {
		case CondVisible, CondHidden, CondText:
			if e.Selector == "" {
				return fmt.Errorf("ui expectation with condition %q requires a selector", e.Condition)
			}
		case CondURL:
			if e.URL == "" {
				return fmt.Errorf("ui expectation with condition url requires a url pattern")
			}
		default:
			return fmt.Errorf("unknown ui condition %q", e.Condition)
		}
		if e.Text != "" {
			if _, err := regexp.Compile(e.Text); err != nil {
				return fmt.Errorf("%w: text %q: %v", ErrInvalidPattern, e.Text, err)
			}
		}
	case ExpectService:
		if e.Adapter == "" {
			return fmt.Errorf("service expectation requires an adapter name")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExpectationKind, e.Kind)
	}
	return nil
}

// Schema is one declarative contract: when an action matching Match is
// executed, the Setup steps run first and the Expectations must hold after.
type Schema struct {
	// Name identifies the schema in results and reports.
	Name string `yaml:"name" json:"name"`

	// Match selects the actions this schema applies to.
	Match Matcher `yaml:"match" json:"match"`

	// Setup steps run before the matched action, in order.
	Setup []SetupStep `yaml:"setup,omitempty" json:"setup,omitempty"`

	// Expectations are the declared side effects, each checked
	// independently.
	Expectations []Expectation `yaml:"expect,omitempty" json:"expect,omitempty"`

	// FollowUp optionally chains one more expected action after this one,
	// e.g. the confirm button of a dialog the action opened. A followUp
	// cannot declare its own followUp.
	FollowUp *Schema `yaml:"followUp,omitempty" json:"follow_up,omitempty"`
}

// compile validates the schema tree and pre-compiles patterns.
func (s *Schema) compile(topLevel bool) error {
	if s.Name == "" {
		return ErrNoSchemaName
	}
	if err := s.Match.compile(); err != nil {
		return fmt.Errorf("schema %q: %w", s.Name, err)
	}
	for i := range s.Expectations {
		if err := s.Expectations[i].validate(); err != nil {
			return fmt.Errorf("schema %q expectation %d: %w", s.Name, i, err)
		}
	}
	if s.FollowUp != nil {
		if !topLevel {
			return fmt.Errorf("schema %q: %w", s.Name, ErrNestedFollowUp)
		}
		if err := s.FollowUp.compile(false); err != nil {
			return err
		}
	}
	return nil
}
