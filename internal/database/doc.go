// Package database provides SQLite-based storage for exploration runs.
//
// This package implements the RunStore, which stores:
//   - Run records with their full result JSON for replay and comparison
//   - Issues in a queryable table for cross-run trends
//   - Verification outcomes for regression detection
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
//  1. No external dependencies - the database is a single file
//  2. CGO-free implementation allows easy cross-compilation
//  3. Sufficient performance for run histories
//  4. WAL mode provides good concurrent read performance
//
// A lock file guards the store against two processes writing the same run
// history at once; SQLite serializes statements, but two whole runs
// interleaving their saves would still corrupt the comparison semantics.
package database
