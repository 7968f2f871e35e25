package model

import (
	"sort"
	"time"
)

// Transition is one edge in the state graph: executing Action on the state
// with fingerprint From produced the state with fingerprint To. Self-loops
// (From == To) record actions that did not change the application state.
type Transition struct {
	From     string    `json:"from"`
	Action   Action    `json:"action"`
	To       string    `json:"to"`
	Viewport string    `json:"viewport,omitempty"`
	At       time.Time `json:"at"`

	// Verifications holds the expectation outcomes for this action, empty
	// when no schema matched.
	Verifications []VerificationResult `json:"verifications,omitempty"`

	// Failed marks transitions whose action errored during execution. The
	// error becomes an issue; the edge is kept so the graph shows the
	// attempt.
	Failed bool `json:"failed,omitempty"`

	// Error is the execution error text for failed transitions.
	Error string `json:"error,omitempty"`
}

// node pairs a state with the issues found on it and its outgoing edges.
type node struct {
	state       *AppState
	issues      []Issue
	transitions []Transition
}

// Graph is the explored state graph: every distinct state discovered, keyed
// by fingerprint, with the issues found at each state and every observed
// transition between states.
//
// Design decision: The graph is a plain in-memory structure with no
// synchronization because:
//  1. Exploration is sequential; a single browser session cannot execute two
//     actions at once, so the graph has a single writer
//  2. Concurrent consumers (reports, stored runs) only run after exploration
//     finishes
//  3. Keeping it free of locks keeps it trivially serializable
//
// A future parallel-viewport crawler would need to guard the graph and the
// visited set with a mutex, or run one graph per viewport with a merge step.
type Graph struct {
	nodes  map[string]*node
	order  []string
	starts []string
}

// NewGraph returns an empty state graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddState records a newly discovered state. Returns false when a state with
// the same fingerprint already exists; the graph keeps the first-discovered
// state, whose path is never longer than a later duplicate's.
func (g *Graph) AddState(s *AppState) bool {
	if _, ok := g.nodes[s.Fingerprint]; ok {
		return false
	}
	s.Index = len(g.order)
	g.nodes[s.Fingerprint] = &node{state: s}
	g.order = append(g.order, s.Fingerprint)
	return true
}

// MarkStart records a state as an exploration entry point.
func (g *Graph) MarkStart(fingerprint string) {
	for _, fp := range g.starts {
		if fp == fingerprint {
			return
		}
	}
	g.starts = append(g.starts, fingerprint)
}

// Starts returns the fingerprints of the entry states.
func (g *Graph) Starts() []string {
	return g.starts
}

// State returns the state with the given fingerprint, or nil.
func (g *Graph) State(fingerprint string) *AppState {
	if n, ok := g.nodes[fingerprint]; ok {
		return n.state
	}
	return nil
}

// Has reports whether a state with the given fingerprint exists.
func (g *Graph) Has(fingerprint string) bool {
	_, ok := g.nodes[fingerprint]
	return ok
}

// Len returns the number of distinct states.
func (g *Graph) Len() int {
	return len(g.order)
}

// States returns all states in discovery order.
func (g *Graph) States() []*AppState {
	out := make([]*AppState, 0, len(g.order))
	for _, fp := range g.order {
		out = append(out, g.nodes[fp].state)
	}
	return out
}

// AddIssue attaches an issue to the state it was found on. Issues for
// unknown fingerprints are dropped; validators only run on states already
// added to the graph.
func (g *Graph) AddIssue(fingerprint string, issue Issue) {
	n, ok := g.nodes[fingerprint]
	if !ok {
		return
	}
	issue.StateFingerprint = fingerprint
	n.issues = append(n.issues, issue)
}

// IssuesAt returns the issues recorded on one state.
func (g *Graph) IssuesAt(fingerprint string) []Issue {
	if n, ok := g.nodes[fingerprint]; ok {
		return n.issues
	}
	return nil
}

// Issues returns every issue in the graph, ordered by state discovery then
// insertion.
func (g *Graph) Issues() []Issue {
	var out []Issue
	for _, fp := range g.order {
		out = append(out, g.nodes[fp].issues...)
	}
	return out
}

// AddTransition records an observed edge on its origin state. Edges from
// unknown fingerprints are dropped. Duplicate edges are kept; the same
// action can legitimately execute more than once during backtracking.
func (g *Graph) AddTransition(t Transition) {
	n, ok := g.nodes[t.From]
	if !ok {
		return
	}
	n.transitions = append(n.transitions, t)
}

// TransitionsFrom returns the outgoing edges of one state.
func (g *Graph) TransitionsFrom(fingerprint string) []Transition {
	if n, ok := g.nodes[fingerprint]; ok {
		return n.transitions
	}
	return nil
}

// Transitions returns every edge in the graph, grouped by origin state in
// discovery order.
func (g *Graph) Transitions() []Transition {
	var out []Transition
	for _, fp := range g.order {
		out = append(out, g.nodes[fp].transitions...)
	}
	return out
}

// Verifications returns every expectation outcome recorded on any edge.
func (g *Graph) Verifications() []VerificationResult {
	var out []VerificationResult
	for _, t := range g.Transitions() {
		out = append(out, t.Verifications...)
	}
	return out
}

// OutDegree returns how many transitions leave the given state.
func (g *Graph) OutDegree(fingerprint string) int {
	return len(g.TransitionsFrom(fingerprint))
}

// URLs returns the distinct normalized URLs across all states, sorted.
func (g *Graph) URLs() []string {
	seen := make(map[string]struct{})
	for _, fp := range g.order {
		seen[g.nodes[fp].state.URL] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// MaxDepth returns the largest path length among discovered states.
func (g *Graph) MaxDepth() int {
	max := 0
	for _, fp := range g.order {
		if d := g.nodes[fp].state.Depth; d > max {
			max = d
		}
	}
	return max
}
