package verify

import "errors"

// Adapter and registry errors.
//
// Design decision: We use package-level sentinel errors so callers can
// distinguish misconfiguration (fatal to the run) from capture and verify
// failures (downgraded to failed results) with errors.Is().
var (
	// ErrDuplicateAdapter is returned when two adapters register under the
	// same name. Names are how schemas reference adapters; a collision
	// would silently reroute expectations.
	ErrDuplicateAdapter = errors.New("adapter name already registered")

	// ErrNotConnected is returned when CaptureState or Verify is called on
	// an adapter whose Connect has not succeeded.
	ErrNotConnected = errors.New("adapter not connected")

	// ErrUnknownChange is returned for database change kinds outside
	// row-added/row-removed/modified/unchanged.
	ErrUnknownChange = errors.New("unknown database change kind")

	// ErrBadIdentifier is returned when a table or column name from
	// configuration is not a plain SQL identifier. Identifiers cannot be
	// bound as parameters, so anything else is rejected outright.
	ErrBadIdentifier = errors.New("invalid SQL identifier")
)
