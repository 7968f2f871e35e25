package catalog

import (
	"net/url"
	"sort"
	"strings"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// DefaultMaxActions is the per-state action cap when none is configured.
const DefaultMaxActions = 15

// SchemaMatcher reports whether an action matches a configured schema and
// returns the schema's name. Injected by the caller so the catalog can rank
// schema-matched actions first without depending on schema configuration.
type SchemaMatcher func(model.Action) (string, bool)

// Catalog turns page observations into prioritized candidate actions.
type Catalog struct {
	maxActions  int
	ignore      []string
	baseHost    string
	matchSchema SchemaMatcher
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithMaxActions caps how many actions a single state may yield. Values
// below 1 keep the default.
func WithMaxActions(n int) Option {
	return func(c *Catalog) {
		if n >= 1 {
			c.maxActions = n
		}
	}
}

// WithIgnoreList skips elements whose selector or label contains any of the
// given entries, case-insensitively. Used for logout buttons and anything
// else that would destroy the session being explored.
func WithIgnoreList(entries []string) Option {
	return func(c *Catalog) {
		c.ignore = entries
	}
}

// WithBaseHost restricts link clicks to the given host. Links leaving the
// target application are never clicked; the link checker probes them
// out-of-band instead.
func WithBaseHost(host string) Option {
	return func(c *Catalog) {
		c.baseHost = strings.ToLower(host)
	}
}

// WithSchemaMatcher ranks actions that match a configured schema ahead of
// unmatched ones and stamps the schema name on the action.
func WithSchemaMatcher(m SchemaMatcher) Option {
	return func(c *Catalog) {
		c.matchSchema = m
	}
}

// New creates a Catalog with the given options.
func New(opts ...Option) *Catalog {
	c := &Catalog{maxActions: DefaultMaxActions}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover enumerates candidate actions on the observed page, in document
// order. Invisible elements, disabled elements, and ignore-list matches are
// skipped. The result is not yet prioritized or capped.
func (c *Catalog) Discover(obs *model.Observation) []model.Action {
	var actions []model.Action

	for _, e := range obs.Elements {
		if !e.Visible || e.Disabled {
			continue
		}
		if c.ignored(e.Selector, e.Label()) {
			continue
		}

		switch e.Kind {
		case model.ElementButton:
			actions = append(actions, model.Action{
				Type:        model.ActionClick,
				Locator:     e.Selector,
				Label:       e.Label(),
				Destructive: model.IsDestructiveLabel(e.Label()),
			})
		case model.ElementLink:
			if !c.clickableLink(e.Href) {
				continue
			}
			actions = append(actions, model.Action{
				Type:        model.ActionClick,
				Locator:     e.Selector,
				Label:       e.Label(),
				Destructive: model.IsDestructiveLabel(e.Label()),
			})
		case model.ElementInput:
			if v := ValueForInput(e.InputType, e.Name); v != "" {
				actions = append(actions, model.Action{
					Type:    model.ActionFill,
					Locator: e.Selector,
					Label:   e.Label(),
					Value:   v,
				})
			}
		case model.ElementSelect:
			if v := firstRealOption(e.Options); v != "" {
				actions = append(actions, model.Action{
					Type:    model.ActionSelect,
					Locator: e.Selector,
					Label:   e.Label(),
					Value:   v,
				})
			}
		case model.ElementCheckbox:
			actions = append(actions, model.Action{
				Type:    model.ActionCheck,
				Locator: e.Selector,
				Label:   e.Label(),
			})
		}
	}

	for _, form := range obs.Forms {
		if c.ignored(form.Selector, "") {
			continue
		}
		actions = append(actions, model.Action{
			Type:        model.ActionSubmit,
			Locator:     form.Selector,
			Label:       "submit " + form.Selector,
			Destructive: model.IsDestructiveLabel(form.ActionTo),
		})
	}

	return actions
}

// Prioritize orders candidates for exploration and caps the result.
//
// Design decision: Ranking is by class, with document order preserved inside
// each class, because:
//  1. Schema-matched actions are the ones the user declared side effects
//     for; front-loading them gets verifications even on truncated runs
//  2. Form interactions change application state; decorative links mostly
//     re-reach known pages
//  3. Destructive actions run last so they cannot wipe out state the other
//     candidates still need to observe
func (c *Catalog) Prioritize(actions []model.Action) []model.Action {
	ranked := make([]model.Action, len(actions))
	copy(ranked, actions)

	if c.matchSchema != nil {
		for i := range ranked {
			if name, ok := c.matchSchema(ranked[i]); ok {
				ranked[i].SchemaName = name
			}
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return rank(ranked[i]) < rank(ranked[j])
	})

	if len(ranked) > c.maxActions {
		ranked = ranked[:c.maxActions]
	}
	return ranked
}

// rank returns the priority class of an action; lower runs earlier.
func rank(a model.Action) int {
	if a.Destructive {
		return 5
	}
	if a.SchemaName != "" {
		return 0
	}
	switch a.Type {
	case model.ActionFill, model.ActionSelect, model.ActionCheck, model.ActionSubmit:
		return 1
	case model.ActionClick:
		return 2
	default:
		return 3
	}
}

// ignored reports whether the selector or label hits the ignore list.
func (c *Catalog) ignored(selector, label string) bool {
	if len(c.ignore) == 0 {
		return false
	}
	sel := strings.ToLower(selector)
	lab := strings.ToLower(label)
	for _, entry := range c.ignore {
		e := strings.ToLower(entry)
		if e == "" {
			continue
		}
		if strings.Contains(sel, e) || (lab != "" && strings.Contains(lab, e)) {
			return true
		}
	}
	return false
}

// clickableLink reports whether a link target is safe to click during
// exploration: same host (or relative), not a download/mail/js pseudo-link.
func (c *Catalog) clickableLink(href string) bool {
	if href == "" {
		return false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:", "data:", "ftp:"} {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return true // relative link stays on the application
	}
	if c.baseHost == "" {
		return true
	}
	return strings.ToLower(u.Hostname()) == stripPort(c.baseHost) || strings.ToLower(u.Host) == c.baseHost
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i >= 0 {
		return host[:i]
	}
	return host
}

// firstRealOption returns the first non-empty option value, skipping blank
// placeholder entries.
func firstRealOption(options []string) string {
	for _, o := range options {
		if strings.TrimSpace(o) != "" {
			return o
		}
	}
	return ""
}

// ValueForInput generates a deterministic fill value for an input. The same
// field always receives the same value so actions replay identically and
// their keys stay stable across visits. Returns "" for inputs that should
// not be filled blindly (file uploads, hidden fields).
func ValueForInput(inputType, name string) string {
	switch strings.ToLower(inputType) {
	case "hidden", "file", "submit", "button", "image", "reset":
		return ""
	case "email":
		return "qa.explorer@example.com"
	case "password":
		return "Str0ngTestPass!"
	case "number", "range":
		return "42"
	case "tel":
		return "555-0117"
	case "url":
		return "https://example.com"
	case "date":
		return "2024-06-01"
	case "time":
		return "13:30"
	case "color":
		return "#336699"
	}
	if name != "" {
		return "Test " + titleCase(name)
	}
	return "Test Value"
}

// titleCase capitalizes the first letter of each word-ish run in a field
// name ("song_title" becomes "Song Title").
func titleCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
