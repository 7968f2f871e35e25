// Package expect implements declarative side-effect contracts for actions.
//
// A Schema binds an action pattern (its Matcher) to optional Setup steps and
// a list of Expectations: the side effects that executing the action must
// produce. Schemas are configuration, loaded from YAML, matched first-wins
// in declaration order, and read-only during a run.
//
// The Engine evaluates a matched schema's expectations against the pre/post
// backend snapshots, the page, and the network log. Every expectation is
// checked independently: one adapter failure never hides the other
// expectations' outcomes, and a schema's result is always the full list of
// per-expectation VerificationResults, never a single boolean.
//
// Test data placeholders ({{testData.KEY}}) in setup values and expectation
// clauses are resolved at load time against the file's testData table, so a
// schema file can declare "insert a row where title={{testData.songTitle}}"
// and both the setup fill and the database check use the same value. A
// seeded generator supplies fallback values for email, user, password,
// title, number, and uuid; file entries and caller overlays shadow them.
package expect
