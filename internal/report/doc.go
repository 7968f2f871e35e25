// Package report renders exploration results for people and machines.
//
// Five formats share one Writer interface: console text for terminals,
// JSON for tooling, Markdown for documentation, HTML for standalone
// viewing, and JUnit XML for CI systems that consume test reports.
//
// Design decision: Every writer renders from the same RunResult rather
// than format-specific intermediate structs because:
//  1. The stored run is the single source of truth; re-rendering an old
//     run must produce the same report
//  2. Adding a format means adding one file, not threading a new struct
//     through the pipeline
package report
