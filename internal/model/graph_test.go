package model

import "testing"

// TestGraphAddState tests state insertion and duplicate rejection.
func TestGraphAddState(t *testing.T) {
	t.Parallel()

	t.Run("first insertion succeeds", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		s := &AppState{Fingerprint: "abc", URL: "http://localhost:3000/"}
		if !g.AddState(s) {
			t.Fatal("AddState returned false for a new state")
		}
		if g.Len() != 1 {
			t.Errorf("Len() = %d, expected 1", g.Len())
		}
		if s.Index != 0 {
			t.Errorf("first state index = %d, expected 0", s.Index)
		}
	})

	t.Run("duplicate fingerprint is rejected", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		first := &AppState{Fingerprint: "abc", Depth: 1}
		dup := &AppState{Fingerprint: "abc", Depth: 5}
		g.AddState(first)
		if g.AddState(dup) {
			t.Fatal("AddState returned true for a duplicate fingerprint")
		}
		if g.Len() != 1 {
			t.Errorf("Len() = %d, expected 1", g.Len())
		}
		if got := g.State("abc"); got.Depth != 1 {
			t.Errorf("graph kept duplicate instead of first-discovered state: depth = %d", got.Depth)
		}
	})

	t.Run("discovery order is preserved", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		for _, fp := range []string{"s0", "s1", "s2"} {
			g.AddState(&AppState{Fingerprint: fp})
		}
		states := g.States()
		for i, want := range []string{"s0", "s1", "s2"} {
			if states[i].Fingerprint != want {
				t.Errorf("states[%d] = %q, expected %q", i, states[i].Fingerprint, want)
			}
			if states[i].Index != i {
				t.Errorf("states[%d].Index = %d, expected %d", i, states[i].Index, i)
			}
		}
	})
}

// TestGraphStarts tests entry-point marking.
func TestGraphStarts(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddState(&AppState{Fingerprint: "entry"})
	g.MarkStart("entry")
	g.MarkStart("entry") // idempotent

	starts := g.Starts()
	if len(starts) != 1 || starts[0] != "entry" {
		t.Errorf("Starts() = %v, expected [entry]", starts)
	}
}

// TestGraphIssues tests that issues accumulate on the node they were found at.
func TestGraphIssues(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddState(&AppState{Fingerprint: "a", URL: "http://x/"})
	g.AddState(&AppState{Fingerprint: "b", URL: "http://x/songs"})

	g.AddIssue("a", NewIssue("console-error", "TypeError"))
	g.AddIssue("b", NewIssue("broken-link-404", "404 on /missing"))
	g.AddIssue("b", NewIssue("img-alt", "image without alt"))
	g.AddIssue("ghost", NewIssue("img-alt", "dropped")) // unknown state

	if got := len(g.IssuesAt("a")); got != 1 {
		t.Errorf("IssuesAt(a) len = %d, expected 1", got)
	}
	if got := len(g.IssuesAt("b")); got != 2 {
		t.Errorf("IssuesAt(b) len = %d, expected 2", got)
	}

	all := g.Issues()
	if len(all) != 3 {
		t.Fatalf("Issues() len = %d, expected 3", len(all))
	}
	// Issues carry the fingerprint of the node they were attached to.
	if all[0].StateFingerprint != "a" {
		t.Errorf("issue fingerprint = %q, expected %q", all[0].StateFingerprint, "a")
	}
}

// TestGraphTransitions tests transition recording on origin nodes.
func TestGraphTransitions(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddState(&AppState{Fingerprint: "a"})
	g.AddState(&AppState{Fingerprint: "b"})

	g.AddTransition(Transition{From: "a", Action: Action{Type: ActionClick, Locator: "#x"}, To: "b"})
	g.AddTransition(Transition{From: "b", Action: Action{Type: ActionClick, Locator: "#back"}, To: "a"})
	g.AddTransition(Transition{From: "a", Action: Action{Type: ActionClick, Locator: "#noop"}, To: "a"})
	g.AddTransition(Transition{From: "ghost", To: "a"}) // unknown origin is dropped

	if got := len(g.Transitions()); got != 3 {
		t.Fatalf("Transitions() len = %d, expected 3", got)
	}
	if got := g.OutDegree("a"); got != 2 {
		t.Errorf("OutDegree(a) = %d, expected 2", got)
	}
	if got := g.OutDegree("b"); got != 1 {
		t.Errorf("OutDegree(b) = %d, expected 1", got)
	}

	// Self-loops are legitimate edges: the action ran but state did not change.
	fromA := g.TransitionsFrom("a")
	if len(fromA) != 2 {
		t.Fatalf("TransitionsFrom(a) len = %d, expected 2", len(fromA))
	}
	if fromA[1].From != "a" || fromA[1].To != "a" {
		t.Errorf("self-loop not recorded as a->a: got %s->%s", fromA[1].From, fromA[1].To)
	}
}

// TestGraphVerifications tests collection of verification results from edges.
func TestGraphVerifications(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddState(&AppState{Fingerprint: "a"})

	g.AddTransition(Transition{
		From: "a", To: "a",
		Verifications: []VerificationResult{
			{Schema: "add-song", Expectation: "row added to songs", Passed: true},
			{Schema: "add-song", Expectation: "POST /api/songs returned 2xx", Passed: false, Message: "got 500"},
		},
	})
	g.AddTransition(Transition{From: "a", To: "a"})

	vs := g.Verifications()
	if len(vs) != 2 {
		t.Fatalf("Verifications() len = %d, expected 2", len(vs))
	}
	if vs[1].Passed {
		t.Error("expected second verification to be a failure")
	}
}

// TestGraphURLs tests distinct URL extraction.
func TestGraphURLs(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddState(&AppState{Fingerprint: "a", URL: "http://localhost:3000/"})
	g.AddState(&AppState{Fingerprint: "b", URL: "http://localhost:3000/songs"})
	g.AddState(&AppState{Fingerprint: "c", URL: "http://localhost:3000/"})

	urls := g.URLs()
	if len(urls) != 2 {
		t.Fatalf("URLs() len = %d, expected 2: %v", len(urls), urls)
	}
	if urls[0] != "http://localhost:3000/" || urls[1] != "http://localhost:3000/songs" {
		t.Errorf("URLs() not sorted distinct: %v", urls)
	}
}

// TestGraphMaxDepth tests the MaxDepth method.
func TestGraphMaxDepth(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	if g.MaxDepth() != 0 {
		t.Errorf("empty graph MaxDepth = %d, expected 0", g.MaxDepth())
	}
	g.AddState(&AppState{Fingerprint: "a", Depth: 0})
	g.AddState(&AppState{Fingerprint: "b", Depth: 2})
	g.AddState(&AppState{Fingerprint: "c", Depth: 1})
	if g.MaxDepth() != 2 {
		t.Errorf("MaxDepth = %d, expected 2", g.MaxDepth())
	}
}
