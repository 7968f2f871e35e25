package model

import (
	"time"

	"github.com/google/uuid"
)

// RunResult is the complete outcome of exploring one target application:
// the state graph, every issue found, every verification performed, and
// enough metadata to store, render, and compare runs.
type RunResult struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// Target is the entry URL that was explored.
	Target string `json:"target"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// States holds every discovered state in discovery order.
	States []*AppState `json:"states"`

	// Transitions holds every observed edge in execution order.
	Transitions []Transition `json:"transitions"`

	// Issues holds every defect found, sorted most severe first.
	Issues []Issue `json:"issues"`

	// Verifications holds the outcome of every schema-matched action.
	Verifications []VerificationResult `json:"verifications"`

	// ActionsExecuted counts every action performed, including replays
	// during backtracking.
	ActionsExecuted int `json:"actions_executed"`

	// HitMaxStates and HitMaxDepth report whether exploration was cut short
	// by a cap, so reports can say the graph is a lower bound.
	HitMaxStates bool `json:"hit_max_states,omitempty"`
	HitMaxDepth  bool `json:"hit_max_depth,omitempty"`

	// Error holds a run-fatal error message when exploration aborted early.
	Error string `json:"error,omitempty"`
}

// NewRunResult creates a result for a target with a fresh run ID.
func NewRunResult(target string) *RunResult {
	return &RunResult{
		RunID:     uuid.NewString(),
		Target:    target,
		StartedAt: time.Now().UTC(),
	}
}

// Duration returns how long the run took.
func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary holds the aggregate counts shown at the top of every report.
type Summary struct {
	States        int              `json:"states"`
	Transitions   int              `json:"transitions"`
	Actions       int              `json:"actions"`
	URLs          int              `json:"urls"`
	Issues        int              `json:"issues"`
	BySeverity    map[Severity]int `json:"by_severity"`
	Verifications int              `json:"verifications"`
	VerifyPassed  int              `json:"verify_passed"`
	VerifyFailed  int              `json:"verify_failed"`

	// DurationMs is the wall-clock run time in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Coverage is the fraction of discovered states that were explored:
	// explored states over explored states plus distinct transition targets
	// the run never visited (states seen but dropped at a cap). 1.0 when
	// the frontier drained completely.
	Coverage float64 `json:"coverage"`
}

// Summarize computes the aggregate counts for the run.
func (r *RunResult) Summarize() Summary {
	s := Summary{
		States:        len(r.States),
		Transitions:   len(r.Transitions),
		Actions:       r.ActionsExecuted,
		Issues:        len(r.Issues),
		BySeverity:    CountBySeverity(r.Issues),
		Verifications: len(r.Verifications),
		DurationMs:    r.Duration().Milliseconds(),
	}
	urls := make(map[string]struct{})
	explored := make(map[string]struct{}, len(r.States))
	for _, st := range r.States {
		urls[st.URL] = struct{}{}
		explored[st.Fingerprint] = struct{}{}
	}
	s.URLs = len(urls)
	unexplored := make(map[string]struct{})
	for _, t := range r.Transitions {
		if _, ok := explored[t.To]; !ok {
			unexplored[t.To] = struct{}{}
		}
	}
	if discovered := len(explored) + len(unexplored); discovered > 0 {
		s.Coverage = float64(len(explored)) / float64(discovered)
	}
	for _, v := range r.Verifications {
		if v.Passed {
			s.VerifyPassed++
		} else {
			s.VerifyFailed++
		}
	}
	return s
}

// Failed reports whether the run should exit nonzero: it aborted, found an
// issue at or above serious, or failed a verification.
func (r *RunResult) Failed() bool {
	if r.Error != "" {
		return true
	}
	for _, i := range r.Issues {
		if i.Severity >= SeveritySerious {
			return true
		}
	}
	for _, v := range r.Verifications {
		if !v.Passed {
			return true
		}
	}
	return false
}
