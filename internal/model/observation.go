package model

import (
	"strings"
	"unicode/utf8"
)

// MaxTextLength is the maximum length of extracted element text stored in an
// observation. Longer text is truncated.
//
// Design decision: We truncate element text because:
//  1. Fingerprints hash structure and identity, not prose, so long text adds
//     no discriminating power
//  2. Observations are kept for every discovered state; unbounded text would
//     grow memory with page content size
//  3. Reports only ever show short labels
const MaxTextLength = 200

// MaxHTMLSnapshot caps the serialized document stored per observation.
// Validators parse the snapshot; half a megabyte covers real pages while
// keeping per-state memory bounded.
const MaxHTMLSnapshot = 512 * 1024

// MaxConsoleEntries caps how many console entries are retained per action.
// A page stuck in an error loop can emit thousands of identical messages.
const MaxConsoleEntries = 100

// MaxNetworkEvents caps how many network events are retained per action.
const MaxNetworkEvents = 200

// ElementKind classifies an interactive element found on a page.
type ElementKind string

const (
	// ElementButton is a button, input[type=button/submit], or any element
	// with role="button".
	ElementButton ElementKind = "button"

	// ElementLink is an anchor with an href.
	ElementLink ElementKind = "link"

	// ElementInput is a text-like input or textarea.
	ElementInput ElementKind = "input"

	// ElementSelect is a select element.
	ElementSelect ElementKind = "select"

	// ElementCheckbox is a checkbox or radio input.
	ElementCheckbox ElementKind = "checkbox"

	// ElementForm is a form element, tracked so submit actions can target it.
	ElementForm ElementKind = "form"
)

// PageElement describes one interactive element discovered on a page. The
// element is identified by a selector that survives reloads; live browser
// handles are never stored.
type PageElement struct {
	// Kind classifies the element.
	Kind ElementKind `json:"kind"`

	// Selector is a CSS selector that locates this element on a fresh load
	// of the same page.
	Selector string `json:"selector"`

	// Tag is the lowercase tag name.
	Tag string `json:"tag"`

	// Text is the visible text or value, truncated to MaxTextLength.
	Text string `json:"text,omitempty"`

	// Name is the name attribute, when present.
	Name string `json:"name,omitempty"`

	// ID is the id attribute, when present.
	ID string `json:"id,omitempty"`

	// InputType is the type attribute for input elements.
	InputType string `json:"input_type,omitempty"`

	// Href is the link target for anchors.
	Href string `json:"href,omitempty"`

	// AriaLabel is the aria-label attribute, when present.
	AriaLabel string `json:"aria_label,omitempty"`

	// Disabled reports whether the element was disabled at observation time.
	Disabled bool `json:"disabled,omitempty"`

	// Visible reports whether the element had a nonzero rendered size.
	Visible bool `json:"visible"`

	// Options holds the option values for select elements.
	Options []string `json:"options,omitempty"`
}

// Label returns the best human-readable name for the element: visible text,
// then aria-label, then name attribute, then id.
func (e PageElement) Label() string {
	for _, s := range []string{e.Text, e.AriaLabel, e.Name, e.ID} {
		if s != "" {
			return s
		}
	}
	return e.Selector
}

// FormField describes one field inside a form.
type FormField struct {
	Selector  string `json:"selector"`
	Name      string `json:"name,omitempty"`
	InputType string `json:"input_type,omitempty"`
	Required  bool   `json:"required,omitempty"`
}

// Form describes a form element and its fields, used to build fill-then-submit
// action sequences.
type Form struct {
	Selector string      `json:"selector"`
	Method   string      `json:"method,omitempty"`
	ActionTo string      `json:"action,omitempty"`
	Fields   []FormField `json:"fields,omitempty"`
}

// Link is a hyperlink discovered on a page, kept separately from elements so
// the link checker can probe targets without re-parsing observations.
type Link struct {
	// Href is the resolved absolute URL.
	Href string `json:"href"`

	// Text is the link's visible text, truncated to MaxTextLength.
	Text string `json:"text,omitempty"`

	// Internal reports whether the link stays on the target application's
	// host. Only internal links are probed by the link checker.
	Internal bool `json:"internal"`
}

// ConsoleLevel is the severity of a browser console entry.
type ConsoleLevel string

const (
	ConsoleError   ConsoleLevel = "error"
	ConsoleWarning ConsoleLevel = "warning"
	ConsoleInfo    ConsoleLevel = "info"
	ConsoleLog     ConsoleLevel = "log"
)

// ConsoleEntry is one message emitted on the browser console.
type ConsoleEntry struct {
	Level ConsoleLevel `json:"level"`
	Text  string       `json:"text"`
	// Source is the script URL that produced the entry, when known.
	Source string `json:"source,omitempty"`
}

// NetworkEvent is one request issued by the page, recorded so validators can
// flag failed or error responses.
type NetworkEvent struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	// Status is the HTTP status code, or 0 if the request never completed.
	Status int `json:"status"`
	// Failed reports whether the request errored before any response
	// (DNS failure, connection refused, aborted).
	Failed bool `json:"failed,omitempty"`
	// FailureReason is the browser's error text for failed requests.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Observation is everything extracted from a loaded page in one pass: the
// URL, title, interactive elements, links, forms, and the console and network
// activity accumulated since the previous observation.
//
// Design decision: Observation is a pure snapshot with no browser references
// because:
//  1. Fingerprinting must be a pure function of observed data
//  2. Observations outlive the page they came from; the explorer navigates
//     away and later reasons about states it can no longer see
//  3. Tests can construct observations directly without a browser
type Observation struct {
	// URL is the page URL at observation time, with any fragment removed.
	URL string `json:"url"`

	// Title is the document title.
	Title string `json:"title,omitempty"`

	// Elements are the interactive elements found, in document order.
	Elements []PageElement `json:"elements,omitempty"`

	// Links are the hyperlinks found, in document order.
	Links []Link `json:"links,omitempty"`

	// Forms are the forms found, in document order.
	Forms []Form `json:"forms,omitempty"`

	// Headings holds the heading levels in document order (1 for h1, 2 for
	// h2, ...), used by the heading-order check.
	Headings []int `json:"headings,omitempty"`

	// Lang is the html element's lang attribute, empty when absent.
	Lang string `json:"lang,omitempty"`

	// DuplicateIDs lists id attribute values that appear more than once.
	DuplicateIDs []string `json:"duplicate_ids,omitempty"`

	// HTML is the serialized document at observation time, truncated to
	// MaxHTMLSnapshot. Consumed by markup validators; excluded from JSON
	// output to keep stored runs small.
	HTML string `json:"-"`

	// Console holds console entries accumulated since the last observation,
	// capped at MaxConsoleEntries.
	Console []ConsoleEntry `json:"console,omitempty"`

	// Network holds network events accumulated since the last observation,
	// capped at MaxNetworkEvents.
	Network []NetworkEvent `json:"network,omitempty"`

	// ScrollWidth and ViewportWidth let the layout validator detect
	// horizontal overflow without re-querying the page.
	ScrollWidth   int `json:"scroll_width,omitempty"`
	ViewportWidth int `json:"viewport_width,omitempty"`
}

// TruncateText shortens s to at most MaxTextLength bytes, collapsing
// interior whitespace first so truncation keeps the most informative prefix.
func TruncateText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return truncateAtRune(s, MaxTextLength)
}

// TruncateHTML shortens a serialized document to at most MaxHTMLSnapshot
// bytes.
func TruncateHTML(s string) string {
	return truncateAtRune(s, MaxHTMLSnapshot)
}

// truncateAtRune cuts s to at most max bytes without splitting a multi-byte
// rune: the cut point backs up to the nearest rune start, so the result is
// always valid UTF-8 when the input is.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ConsoleErrors returns only the error-level console entries.
func (o *Observation) ConsoleErrors() []ConsoleEntry {
	var out []ConsoleEntry
	for _, e := range o.Console {
		if e.Level == ConsoleError {
			out = append(out, e)
		}
	}
	return out
}

// InternalLinks returns only the links that stay on the application's host.
func (o *Observation) InternalLinks() []Link {
	var out []Link
	for _, l := range o.Links {
		if l.Internal {
			out = append(out, l)
		}
	}
	return out
}
