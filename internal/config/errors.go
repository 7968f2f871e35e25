package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when no start URL is specified.
	ErrNoTarget = errors.New("no target specified: provide a start URL or set startUrls in the config file")

	// ErrInvalidTarget is returned when a start URL is not an absolute
	// http or https URL. Exploration needs a navigable origin.
	ErrInvalidTarget = errors.New("invalid target: start URLs must be absolute http(s) URLs")

	// ErrInvalidDepth is returned when maxDepth is negative.
	// Depth 0 is valid and explores only the entry states themselves.
	ErrInvalidDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxStates is returned when maxStates is not positive.
	// Zero states would mean the entry page itself cannot be recorded.
	ErrInvalidMaxStates = errors.New("invalid max states: must be positive")

	// ErrInvalidMaxActions is returned when maxActions is not positive.
	ErrInvalidMaxActions = errors.New("invalid max actions: must be positive")

	// ErrInvalidTimeout is returned when any of the navigation, action,
	// or settle timeouts is not positive. A zero timeout would make every
	// interaction fail immediately.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrUnknownDriver is returned for driver values outside rod/static.
	ErrUnknownDriver = errors.New("unknown driver: must be \"rod\" or \"static\"")

	// ErrUnknownAdapterKind is returned when an adapter config names a
	// kind outside sqlite/payments/service.
	ErrUnknownAdapterKind = errors.New("unknown adapter kind")

	// ErrAdapterMissingDSN is returned when a sqlite adapter has no DSN.
	ErrAdapterMissingDSN = errors.New("sqlite adapter requires a dsn")

	// ErrAdapterMissingURL is returned when an HTTP-probed adapter has no
	// base URL.
	ErrAdapterMissingURL = errors.New("adapter requires a url")

	// ErrIncompleteLogin is returned when a login block lacks a URL or
	// steps. A partial login would start exploration half-authenticated.
	ErrIncompleteLogin = errors.New("incomplete login config: url and steps are required")

	// ErrUnknownReportFormat is returned for report formats outside
	// console/json/markdown/html/junit.
	ErrUnknownReportFormat = errors.New("unknown report format")
)

// adapterError wraps a sentinel with the adapter name that failed
// validation, preserving errors.Is matching.
func adapterError(name string, err error) error {
	return fmt.Errorf("adapter %q: %w", name, err)
}
