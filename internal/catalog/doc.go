// Package catalog discovers and prioritizes candidate actions on a page.
//
// Discovery enumerates the clickable, fillable, and selectable elements of
// an observation, skipping invisible or disabled elements and anything on
// the configured ignore list (logout buttons, external widgets). Fill values
// are generated deterministically per field so the same action replays with
// the same value on every visit.
//
// Prioritization orders the candidates to front-load exploration value:
// schema-matched actions first, then form interactions, then buttons, then
// links, with destructive actions always deferred to the very end. The
// ordered list is capped at a per-state limit; unbounded fan-out from a
// single state would make the crawl non-terminating in practice.
package catalog
