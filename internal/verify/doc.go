// Package verify defines the backend adapter contract and its registry.
//
// An Adapter is a pluggable verifier for one backend system: the
// application's database, a payments service, an external AI service. Each
// adapter exposes the same four-method capability set (connect, capture
// state, verify an expectation, disconnect); the registry holds the
// configured adapters by name and fans capture calls out concurrently.
//
// Adapters are strictly read-only against the system they observe. Verify
// performs lookups, never writes; a verifier that mutated the backend would
// corrupt the very state the next expectation checks.
package verify
