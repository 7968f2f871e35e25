package verify

import (
	"context"

	"github.com/rob-kingsbury/ui-explorer/internal/expect"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Adapter is a pluggable backend verifier. Implementations are selected by
// name at configuration time and live for the whole run.
//
// Design decision: We use a single interface with the full capability set
// rather than splitting capture and verify into separate interfaces
// because:
//  1. Every backend that can verify an expectation can also snapshot its
//     state; the two operations share the connection
//  2. The crawler treats adapters uniformly: connect all at start, capture
//     around every action, disconnect at end
//  3. The expectation engine consumes only the Verify slice through its own
//     narrow interface, so the width here costs callers nothing
type Adapter interface {
	// Name identifies the adapter. Schemas reference adapters by this name
	// and snapshots are keyed by it.
	Name() string

	// Connect establishes the adapter's connection to its backend. Called
	// once at run start; an error fails the whole run, because a schema
	// that references an unreachable backend is a misconfiguration, not a
	// finding.
	Connect(ctx context.Context) error

	// CaptureState returns a snapshot of the backend's relevant state with
	// no side effects. Captured before and after every schema-matched
	// action; equal digests mean the backend did not change.
	CaptureState(ctx context.Context) (model.AdapterSnapshot, error)

	// Verify performs a read-only check of one expectation against the
	// backend, given the snapshots captured around the action. It must not
	// mutate the target system.
	Verify(ctx context.Context, action model.Action, exp expect.Expectation, pre, post model.AdapterSnapshot) (model.VerificationResult, error)

	// Disconnect releases the adapter's connection. Best-effort cleanup,
	// called once at run end regardless of run success.
	Disconnect(ctx context.Context) error
}
