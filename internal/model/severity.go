package model

// Severity represents the impact level of an issue found during exploration.
// This allows categorizing findings by how urgently they need attention.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and sorting. The String() method provides
// human-readable output when needed.
type Severity int

const (
	// SeverityMinor indicates cosmetic problems with no functional impact.
	// Examples: heading levels that skip, decorative elements that cannot
	// receive focus. Worth fixing, never worth blocking a release.
	SeverityMinor Severity = iota

	// SeverityModerate indicates defects that degrade the experience but
	// leave the page usable. Examples: console errors, slow external links,
	// missing document language, layout overflow on narrow viewports.
	SeverityModerate

	// SeveritySerious indicates defects that break a user-visible flow or
	// exclude a class of users. Examples: broken internal links, failed
	// backend requests, form controls without accessible labels.
	SeveritySerious

	// SeverityCritical indicates defects that make a flow unusable or
	// silently corrupt data. Examples: an action whose declared side effect
	// never happened, interactive elements that cannot be activated at all.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeveritySerious:
		return "serious"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a string to a Severity.
// Unknown strings map to SeverityModerate, the middle of the scale, so a
// typo in a rule table never silently hides or over-promotes a finding.
func ParseSeverity(s string) Severity {
	switch s {
	case "minor":
		return SeverityMinor
	case "moderate":
		return SeverityModerate
	case "serious":
		return SeveritySerious
	case "critical":
		return SeverityCritical
	default:
		return SeverityModerate
	}
}

// RuleInfo contains metadata about an issue rule: its severity, a
// description of why it matters, and the recommended fix.
type RuleInfo struct {
	Severity       Severity
	Impact         string
	Recommendation string
}

// ruleInfoMapping maps rule identifiers to their metadata.
// This centralized mapping ensures consistent severity assessment across
// validators.
//
// Design decision: We use a map rather than embedding severity in each
// validator because:
//  1. It allows tuning severities without touching validator logic
//  2. It provides a single source of truth for every rule the tool reports
//  3. It makes it easy to generate rule documentation
var ruleInfoMapping = map[string]RuleInfo{
	// CRITICAL - a flow is unusable or a declared side effect failed
	"expectation-failed": {
		Severity:       SeverityCritical,
		Impact:         "An action's declared side effect (database row, API call, UI change) did not happen, so the feature behind the action is broken or silently losing data.",
		Recommendation: "Reproduce the action manually and inspect the backend handler for the missing write or response.",
	},
	"action-unreachable": {
		Severity:       SeverityCritical,
		Impact:         "An interactive element could not be activated at all; users cannot complete the flow it belongs to.",
		Recommendation: "Check for overlapping elements, disabled states that never clear, or JavaScript errors thrown on activation.",
	},

	// SERIOUS - a user-visible flow is broken or users are excluded
	"broken-link-404": {
		Severity:       SeveritySerious,
		Impact:         "An internal link returns 404; the page it points to is unreachable through normal navigation.",
		Recommendation: "Fix the link target or remove the link. Check for routes renamed without redirects.",
	},
	"link-unreachable": {
		Severity:       SeveritySerious,
		Impact:         "An internal link could not be fetched at all (connection refused, DNS failure); its target is completely unavailable.",
		Recommendation: "Check that the service behind the link is running and that the link's host and port are correct.",
	},
	"network-error": {
		Severity:       SeveritySerious,
		Impact:         "A request issued by the page failed or returned a server error, so part of the page's data or behavior is missing.",
		Recommendation: "Inspect the failing endpoint in server logs; surface errors to users instead of failing silently.",
	},
	"img-alt": {
		Severity:       SeveritySerious,
		Impact:         "Images without alternative text are invisible to screen reader users.",
		Recommendation: "Add an alt attribute describing the image, or alt=\"\" for purely decorative images.",
	},
	"form-label": {
		Severity:       SeveritySerious,
		Impact:         "Form fields without an associated label cannot be identified by assistive technology.",
		Recommendation: "Associate every input with a <label for=...>, aria-label, or aria-labelledby.",
	},
	"button-name": {
		Severity:       SeveritySerious,
		Impact:         "Buttons without an accessible name are announced as just \"button\", leaving users guessing what they do.",
		Recommendation: "Give the button visible text, an aria-label, or a labelled icon.",
	},

	// MODERATE - degraded but usable
	"link-timeout": {
		Severity:       SeverityModerate,
		Impact:         "An internal link did not respond within the probe timeout; the target page may be unusably slow.",
		Recommendation: "Profile the slow route; consider caching or moving expensive work off the request path.",
	},
	"client-error": {
		Severity:       SeverityModerate,
		Impact:         "A request issued by the page returned a 4xx status, usually a stale endpoint or a missing resource.",
		Recommendation: "Update the client to match the current API, or restore the missing resource.",
	},
	"console-error": {
		Severity:       SeverityModerate,
		Impact:         "The page logged a JavaScript error; behavior after the error point is unpredictable.",
		Recommendation: "Fix the script error; treat console noise in production as a defect.",
	},
	"html-lang": {
		Severity:       SeverityModerate,
		Impact:         "Without a lang attribute, screen readers guess the pronunciation language and often guess wrong.",
		Recommendation: "Set <html lang=\"...\"> to the page's primary language.",
	},
	"duplicate-id": {
		Severity:       SeverityModerate,
		Impact:         "Duplicate id attributes break label associations, anchors, and any script that queries by id.",
		Recommendation: "Make every id unique within the document.",
	},
	"layout-overflow": {
		Severity:       SeverityModerate,
		Impact:         "Content overflows the viewport horizontally, forcing sideways scrolling on this screen size.",
		Recommendation: "Check fixed widths and unbroken strings at this viewport; prefer max-width and flexible layouts.",
	},

	// MINOR - cosmetic
	"heading-order": {
		Severity:       SeverityMinor,
		Impact:         "Heading levels that skip (h1 to h3) make the document outline confusing to navigate.",
		Recommendation: "Use heading levels in order; style them with CSS instead of skipping levels.",
	},
	"invisible-interactive": {
		Severity:       SeverityMinor,
		Impact:         "An interactive element has zero rendered size; it is focusable but cannot be seen or clicked.",
		Recommendation: "Remove the element or give it visible dimensions; hidden controls confuse keyboard users.",
	},
}

// GetSeverity returns the severity level for a rule identifier.
// Returns SeverityModerate if the rule is not in the mapping.
func GetSeverity(rule string) Severity {
	if info, ok := ruleInfoMapping[rule]; ok {
		return info.Severity
	}
	return SeverityModerate
}

// GetRuleInfo returns the full rule information for a rule identifier.
// Returns a default RuleInfo with SeverityModerate if the rule is unknown.
func GetRuleInfo(rule string) RuleInfo {
	if info, ok := ruleInfoMapping[rule]; ok {
		return info
	}
	return RuleInfo{
		Severity:       SeverityModerate,
		Impact:         "Unknown rule. Review manually.",
		Recommendation: "Investigate the finding and assess impact.",
	}
}
