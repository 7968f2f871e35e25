package model

import "sort"

// AuthState describes the authentication context a state was observed under.
// Two otherwise identical pages seen logged-in and logged-out are different
// states; the auth state feeds the fingerprint to keep them apart.
type AuthState struct {
	// Authenticated reports whether the configured login sequence had
	// completed when the state was observed.
	Authenticated bool `json:"authenticated"`

	// UserID identifies the logged-in user, when known.
	UserID string `json:"user_id,omitempty"`

	// Role is the logged-in user's role, when known.
	Role string `json:"role,omitempty"`
}

// Digest returns a stable string form for fingerprinting.
func (a AuthState) Digest() string {
	if !a.Authenticated {
		return "anon"
	}
	return "auth|" + a.UserID + "|" + a.Role
}

// DatabaseSnapshot is a backend database's shape at a point in time:
// row counts per table, plus optionally a sample of each table's most
// recent rows for delta inspection.
type DatabaseSnapshot struct {
	// RowCounts maps table name to row count.
	RowCounts map[string]int `json:"row_counts"`

	// Samples maps table name to its most recent rows, each row a
	// column-to-value map. Populated only when sampling is enabled.
	Samples map[string][]map[string]any `json:"samples,omitempty"`
}

// Tables returns the table names in sorted order.
func (d *DatabaseSnapshot) Tables() []string {
	out := make([]string, 0, len(d.RowCounts))
	for t := range d.RowCounts {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// AdapterSnapshot is one backend adapter's view of its system at a point in
// time: a stable digest plus the raw captured data the adapter needs to
// compute deltas.
//
// Design decision: Snapshots live in the model package even though adapters
// produce them because:
//  1. The fingerprint incorporates backend digests, and fingerprinting must
//     depend only on model data
//  2. States store their snapshots; storing adapter-specific types would
//     couple the state graph to every adapter implementation
//  3. The structured payload is optional; only the adapter that produced a
//     snapshot ever interprets its raw Data
type AdapterSnapshot struct {
	// Adapter is the name of the adapter that captured this snapshot.
	Adapter string `json:"adapter"`

	// Digest is a stable hash of the backend's relevant state. Equal digests
	// mean the adapter observed identical state.
	Digest string `json:"digest"`

	// Database holds the structured snapshot for database adapters, nil for
	// adapters with opaque state.
	Database *DatabaseSnapshot `json:"database,omitempty"`

	// Data is the raw captured state, encoded by the adapter. Used to
	// compute record-level deltas between captures.
	Data []byte `json:"-"`
}

// AppState is one node in the state graph: a distinct application state
// reached during exploration, identified by its fingerprint.
type AppState struct {
	// Fingerprint is the state's identity, derived from the normalized URL,
	// the structural digest of interactive elements, the viewport name, the
	// auth context, and the backend snapshot digests. Two observations with
	// the same fingerprint are the same state.
	Fingerprint string `json:"fingerprint"`

	// URL is the normalized page URL the state was observed at.
	URL string `json:"url"`

	// Title is the document title at discovery time.
	Title string `json:"title,omitempty"`

	// Viewport is the named window size the state was observed under.
	Viewport string `json:"viewport"`

	// Auth is the authentication context the state was observed under.
	Auth AuthState `json:"auth"`

	// Path is the action sequence that reaches this state from the entry
	// URL. Replaying it reproduces the state.
	Path Path `json:"path"`

	// Depth is the number of actions in Path.
	Depth int `json:"depth"`

	// Index is the discovery order, starting at 0 for the entry state.
	Index int `json:"index"`

	// Observation is the page content captured when the state was first
	// discovered.
	Observation *Observation `json:"observation,omitempty"`

	// Snapshots holds the backend adapter captures taken when the state was
	// discovered, keyed by adapter name.
	Snapshots map[string]AdapterSnapshot `json:"snapshots,omitempty"`
}

// SnapshotDigests returns the adapter digests keyed by adapter name, or nil
// when no snapshots were captured. Fingerprinting folds these in so states
// that differ only in backend data stay distinct.
func (s *AppState) SnapshotDigests() map[string]string {
	if len(s.Snapshots) == 0 {
		return nil
	}
	out := make(map[string]string, len(s.Snapshots))
	for name, snap := range s.Snapshots {
		out[name] = snap.Digest
	}
	return out
}
