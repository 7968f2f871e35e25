// Package crawler explores a running web application as a state graph.
//
// # Architecture
//
// The crawler package is designed around the Explorer type, which runs a
// breadth-first frontier of Tasks. A Task describes how to reach a state:
// a URL to load plus the action path to replay on top of it. Visiting a
// task fingerprints the resulting page; already-visited fingerprints are
// discarded whole, new ones become graph nodes whose discovered actions
// seed deeper tasks.
//
// Design decision: We backtrack by reloading and replaying rather than
// using browser history because:
//  1. Single-page applications mutate state that Back does not restore
//  2. A replay path is a reproducible recipe; history is session-local
//  3. The same mechanism recovers from failed actions: reloading and
//     replaying returns the session to a known state
//
// # Components
//
//   - Explorer: the frontier scheduler coordinating exploration
//   - Outcome: what a finished (or aborted) exploration produced
//
// Fingerprinting, action discovery, expectation evaluation, and page
// validation live in their own packages; the explorer only orchestrates.
//
// # Usage
//
//	exp := crawler.New(session, cfg, crawler.WithEngine(engine))
//	outcome, err := exp.Run(ctx)
package crawler
