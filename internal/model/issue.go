package model

import (
	"fmt"
	"sort"
)

// Issue is one defect found during exploration: a failed expectation, a
// broken link, a console error, an accessibility violation. Issues are the
// primary output of a run and accumulate on the state-graph node they were
// found at.
type Issue struct {
	// Rule is the identifier of the check that produced the issue, e.g.
	// "broken-link-404" or "expectation-failed". Severity and remediation
	// metadata are looked up from the rule.
	Rule string `json:"rule"`

	// Severity is the issue's impact level, resolved from the rule at
	// creation time so stored runs carry it explicitly.
	Severity Severity `json:"severity"`

	// Message describes the specific defect found.
	Message string `json:"message"`

	// StateFingerprint identifies the state the issue was found on.
	StateFingerprint string `json:"state_fingerprint,omitempty"`

	// URL is the page URL the issue was found on.
	URL string `json:"url,omitempty"`

	// Viewport is the named window size the issue was observed under.
	Viewport string `json:"viewport,omitempty"`

	// Locators identifies the affected elements, when element-specific.
	Locators []string `json:"locators,omitempty"`

	// Action describes the interaction that surfaced the issue, when the
	// issue came from executing an action rather than inspecting a page.
	Action string `json:"action,omitempty"`

	// Validator is the name of the validator that produced the issue, empty
	// for issues raised by the explorer itself.
	Validator string `json:"validator,omitempty"`

	// Detail carries check-specific context: the probed link target, the
	// console message source, the expected versus actual rows.
	Detail string `json:"detail,omitempty"`
}

// NewIssue builds an issue for a rule, resolving its severity from the rule
// mapping.
func NewIssue(rule, message string) Issue {
	return Issue{
		Rule:     rule,
		Severity: GetSeverity(rule),
		Message:  message,
	}
}

// String returns a compact single-line form for logs.
func (i Issue) String() string {
	if i.URL != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", i.Severity, i.Rule, i.Message, i.URL)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Rule, i.Message)
}

// SortIssues orders issues most severe first, then by rule, then by URL, so
// reports are stable across runs of the same application.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		return a.Message < b.Message
	})
}

// CountBySeverity returns how many issues exist at each severity level.
func CountBySeverity(issues []Issue) map[Severity]int {
	out := make(map[Severity]int)
	for _, i := range issues {
		out[i.Severity]++
	}
	return out
}
