package model

// VerificationResult is the outcome of evaluating one expectation against
// the pre/post snapshots of an action. Every expectation in a matched schema
// produces exactly one result; results accumulate on the transition the
// action created.
type VerificationResult struct {
	// Schema is the name of the action schema the expectation belongs to.
	Schema string `json:"schema"`

	// Expectation names the single check performed: "database: row added to
	// songs", "api: POST /api/songs returned 2xx".
	Expectation string `json:"expectation"`

	// Passed reports whether the expectation held.
	Passed bool `json:"passed"`

	// Message explains a failure with enough context to reproduce: what was
	// expected, what was found, and where. Empty when the expectation held.
	Message string `json:"message,omitempty"`

	// Expected and Actual describe the compared values in human-readable
	// form, filled for both passing and failing results.
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// AllPassed reports whether every result in the list passed. True for an
// empty list: an action with no matched schema has nothing to fail.
func AllPassed(results []VerificationResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// FailureMessages returns the messages of all failed results.
func FailureMessages(results []VerificationResult) []string {
	var out []string
	for _, r := range results {
		if !r.Passed && r.Message != "" {
			out = append(out, r.Message)
		}
	}
	return out
}
