// Package browser provides the browser-control collaborator: a Session
// interface over a live page, with two implementations.
//
// The rod session drives a real Chrome through go-rod with stealth page
// creation, so JavaScript-heavy applications expose their real interactive
// surface. The static session fetches pages over plain HTTP and parses the
// served HTML; no scripts run, which makes it fast, dependency-free at
// runtime, and the driver of choice for tests and server-rendered sites.
//
// Console and network events accumulate on the session that observed them
// and are drained once per visited-state validation pass. They are never
// process-global: two sessions never see each other's traffic.
package browser
