// Package fingerprint computes stable identities for application states.
//
// The fingerprinter turns a page observation plus its context (viewport,
// auth state, backend snapshots) into an AppState whose fingerprint is a
// pure function of what was observed. Two observations that agree on
// normalized URL, interactive-element structure, viewport, auth context,
// and backend digests receive the same identity, which is the dedup
// contract that keeps exploration bounded on applications with dynamic
// content.
//
// The structural digest deliberately ignores everything that churns per
// render: CSS classes, inline styles, non-interactive text, timestamps.
// Only the interactive skeleton of the page participates in identity.
package fingerprint
