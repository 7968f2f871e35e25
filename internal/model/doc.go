// Package model defines the core data structures used throughout ui-explorer.
//
// This package contains the following main types:
//   - Observation: the raw page data a browser session reads in one call
//   - AppState: a fingerprinted point-in-time snapshot of the application
//   - Action: a replayable description of one interaction
//   - Task: a pending unit of exploration (a state plus its ordered actions)
//   - Issue: a validator finding with severity classification
//   - VerificationResult: the outcome of one expectation check
//   - Transition and Graph: the explored state graph
//   - RunResult: the complete output of one exploration run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, catalog, expect, report) need to
// use these types, so centralizing them prevents import cycles. Everything
// here is plain data or pure methods over its own fields: the crawler is the
// single owner of all mutable exploration state, and keeping the model inert
// is what lets the other components stay pure functions of their inputs.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
