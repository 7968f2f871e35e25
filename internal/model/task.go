package model

// Task is one pending unit of exploration on the frontier queue: a URL to
// load, a path to replay on top of it, the resulting depth, and the viewport
// to explore under.
//
// Design decision: A task describes how to REACH a state, not the state
// itself, because:
//  1. The state is only known after navigating and fingerprinting; the same
//     task can land on an already-visited state and be discarded whole
//  2. Replay is the only mechanism for returning to a state; the URL plus
//     path is exactly the replay recipe
//  3. Tasks are cheap value objects, safe to enqueue long before the browser
//     gets to them
type Task struct {
	// URL is the address to navigate to before replaying.
	URL string `json:"url"`

	// Path is the action sequence to replay after navigation. Empty for
	// entry tasks.
	Path Path `json:"path,omitempty"`

	// Depth is the number of actions in Path.
	Depth int `json:"depth"`

	// Viewport is the named window size to explore under.
	Viewport Viewport `json:"viewport"`
}

// Extend returns the follow-up task created when an action discovers a new
// state: same URL and viewport, path plus the action, depth plus one.
func (t Task) Extend(a Action) Task {
	return Task{
		URL:      t.URL,
		Path:     t.Path.Extend(a),
		Depth:    t.Depth + 1,
		Viewport: t.Viewport,
	}
}
