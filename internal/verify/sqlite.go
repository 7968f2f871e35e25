package verify

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/rob-kingsbury/ui-explorer/internal/expect"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// sampleLimit is how many recent rows are captured per table when sampling
// is enabled. Snapshots are taken around every schema-matched action, so
// the per-capture cost must stay small.
const sampleLimit = 5

// identRe matches plain SQL identifiers. Table and column names come from
// user configuration and cannot be bound as query parameters, so anything
// outside this shape is rejected before it reaches a query string.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteAdapter verifies expectations against the application's SQLite
// database. It opens the database read-only: the adapter observes the
// application's writes, it never makes its own.
type SQLiteAdapter struct {
	name       string
	dsn        string
	tables     []string
	sampleRows bool
	db         *sql.DB
}

// SQLiteOption configures a SQLiteAdapter.
type SQLiteOption func(*SQLiteAdapter)

// WithTables restricts snapshots to the given tables. Without it, every
// table in the database is counted on each capture.
func WithTables(tables []string) SQLiteOption {
	return func(a *SQLiteAdapter) {
		a.tables = tables
	}
}

// WithSampleRows enables capturing each table's most recent rows in
// snapshots, letting modified-kind expectations compare row content.
func WithSampleRows() SQLiteOption {
	return func(a *SQLiteAdapter) {
		a.sampleRows = true
	}
}

// NewSQLiteAdapter creates an adapter for the SQLite database at dsn,
// registered under the given name.
func NewSQLiteAdapter(name, dsn string, opts ...SQLiteOption) *SQLiteAdapter {
	a := &SQLiteAdapter{name: name, dsn: dsn}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the adapter's registered name.
func (a *SQLiteAdapter) Name() string {
	return a.name
}

// readOnlyDSN forces mode=ro onto a DSN, merging with any query parameters
// already present ("file:app.db?cache=shared" must not end up with two "?").
func readOnlyDSN(dsn string) string {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	q.Set("mode", "ro")
	return path + "?" + q.Encode()
}

// Connect opens the database read-only and verifies it is reachable.
func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	for _, t := range a.tables {
		if !identRe.MatchString(t) {
			return fmt.Errorf("%w: table %q", ErrBadIdentifier, t)
		}
	}

	// mode=ro guarantees at the driver level that this adapter can never
	// write to the application's database.
	db, err := sql.Open("sqlite", readOnlyDSN(a.dsn))
	if err != nil {
		return fmt.Errorf("open %s: %w", a.dsn, err)
	}

	// A single connection is enough for an adapter that only reads; a
	// second one buys nothing and risks lock contention with the
	// application's writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping %s: %w", a.dsn, err)
	}

	a.db = db
	return nil
}

// Disconnect closes the database connection.
func (a *SQLiteAdapter) Disconnect(_ context.Context) error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// CaptureState snapshots per-table row counts and, when sampling is
// enabled, each table's most recent rows.
func (a *SQLiteAdapter) CaptureState(ctx context.Context) (model.AdapterSnapshot, error) {
	if a.db == nil {
		return model.AdapterSnapshot{}, ErrNotConnected
	}

	tables := a.tables
	if len(tables) == 0 {
		var err error
		if tables, err = a.listTables(ctx); err != nil {
			return model.AdapterSnapshot{}, err
		}
	}

	dbSnap := &model.DatabaseSnapshot{RowCounts: make(map[string]int, len(tables))}
	for _, table := range tables {
		count, err := a.countRows(ctx, table, nil)
		if err != nil {
			return model.AdapterSnapshot{}, fmt.Errorf("count %s: %w", table, err)
		}
		dbSnap.RowCounts[table] = count

		if a.sampleRows {
			rows, err := a.recentRows(ctx, table)
			if err != nil {
				return model.AdapterSnapshot{}, fmt.Errorf("sample %s: %w", table, err)
			}
			if dbSnap.Samples == nil {
				dbSnap.Samples = make(map[string][]map[string]any)
			}
			dbSnap.Samples[table] = rows
		}
	}

	raw, err := json.Marshal(dbSnap)
	if err != nil {
		return model.AdapterSnapshot{}, err
	}

	return model.AdapterSnapshot{
		Adapter:  a.name,
		Digest:   digestSnapshot(dbSnap),
		Database: dbSnap,
		Data:     raw,
	}, nil
}

// Verify checks one database expectation against the live database and the
// snapshots captured around the action.
func (a *SQLiteAdapter) Verify(ctx context.Context, _ model.Action, exp expect.Expectation, pre, post model.AdapterSnapshot) (model.VerificationResult, error) {
	if a.db == nil {
		return model.VerificationResult{}, ErrNotConnected
	}

	r := model.VerificationResult{Expectation: exp.Describe()}
	preCount, postCount := tableCount(pre, exp.Table), tableCount(post, exp.Table)

	switch exp.Change {
	case expect.ChangeRowAdded:
		if len(exp.Where) > 0 {
			// A matching row must exist now. The live query is the source
			// of truth; snapshots only narrate the pass/fail context.
			matching, err := a.countRows(ctx, exp.Table, exp.Where)
			if err != nil {
				return r, err
			}
			r.Expected = fmt.Sprintf("at least 1 row in %s matching %s", exp.Table, whereClauseText(exp.Where))
			r.Actual = fmt.Sprintf("%d matching rows", matching)
			if matching >= 1 {
				r.Passed = true
				return r, nil
			}
			r.Message = fmt.Sprintf("expected a row in table %q matching %s, found none", exp.Table, whereClauseText(exp.Where))
			return r, nil
		}

		r.Expected = fmt.Sprintf("%s row count to increase from %d", exp.Table, preCount)
		r.Actual = fmt.Sprintf("%d rows", postCount)
		if postCount > preCount {
			r.Passed = true
			return r, nil
		}
		r.Message = fmt.Sprintf("expected a row added to table %q, count stayed at %d", exp.Table, postCount)
		return r, nil

	case expect.ChangeRowRemoved:
		if len(exp.Where) > 0 {
			matching, err := a.countRows(ctx, exp.Table, exp.Where)
			if err != nil {
				return r, err
			}
			r.Expected = fmt.Sprintf("no rows in %s matching %s", exp.Table, whereClauseText(exp.Where))
			r.Actual = fmt.Sprintf("%d matching rows", matching)
			if matching == 0 {
				r.Passed = true
				return r, nil
			}
			r.Message = fmt.Sprintf("expected no rows in table %q matching %s, found %d", exp.Table, whereClauseText(exp.Where), matching)
			return r, nil
		}

		r.Expected = fmt.Sprintf("%s row count to decrease from %d", exp.Table, preCount)
		r.Actual = fmt.Sprintf("%d rows", postCount)
		if postCount < preCount {
			r.Passed = true
			return r, nil
		}
		r.Message = fmt.Sprintf("expected a row removed from table %q, count stayed at %d", exp.Table, postCount)
		return r, nil

	case expect.ChangeModified:
		if len(exp.Where) > 0 {
			// The update is verified by the new values: a row carrying
			// them must exist after the action.
			matching, err := a.countRows(ctx, exp.Table, exp.Where)
			if err != nil {
				return r, err
			}
			r.Expected = fmt.Sprintf("a row in %s matching %s", exp.Table, whereClauseText(exp.Where))
			r.Actual = fmt.Sprintf("%d matching rows", matching)
			if matching >= 1 {
				r.Passed = true
				return r, nil
			}
			r.Message = fmt.Sprintf("expected an updated row in table %q matching %s, found none", exp.Table, whereClauseText(exp.Where))
			return r, nil
		}

		// Without a where clause, modification is visible only through the
		// sampled row content.
		preRows, postRows := tableSamples(pre, exp.Table), tableSamples(post, exp.Table)
		if preRows == nil && postRows == nil {
			r.Message = fmt.Sprintf("modified expectation on table %q needs either a where clause or sampleRows enabled on the adapter", exp.Table)
			return r, nil
		}
		r.Expected = fmt.Sprintf("row content of %s to change", exp.Table)
		if !sameRows(preRows, postRows) {
			r.Passed = true
			r.Actual = "row content changed"
			return r, nil
		}
		r.Actual = "row content identical"
		r.Message = fmt.Sprintf("expected rows in table %q to be modified, sampled content is identical", exp.Table)
		return r, nil

	case expect.ChangeUnchanged:
		r.Expected = fmt.Sprintf("%s row count to stay at %d", exp.Table, preCount)
		r.Actual = fmt.Sprintf("%d rows", postCount)
		if preCount == postCount {
			r.Passed = true
			return r, nil
		}
		r.Message = fmt.Sprintf("expected table %q unchanged, count moved from %d to %d", exp.Table, preCount, postCount)
		return r, nil

	default:
		return r, fmt.Errorf("%w: %q", ErrUnknownChange, exp.Change)
	}
}

// listTables returns the user tables in the database, sorted.
func (a *SQLiteAdapter) listTables(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// countRows counts the rows of a table, optionally restricted by a column
// equality where map. Identifiers are validated; values are bound.
func (a *SQLiteAdapter) countRows(ctx context.Context, table string, where map[string]string) (int, error) {
	if !identRe.MatchString(table) {
		return 0, fmt.Errorf("%w: table %q", ErrBadIdentifier, table)
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)
	var args []any
	if len(where) > 0 {
		cols := sortedKeys(where)
		conds := make([]string, len(cols))
		for i, col := range cols {
			if !identRe.MatchString(col) {
				return 0, fmt.Errorf("%w: column %q", ErrBadIdentifier, col)
			}
			conds[i] = fmt.Sprintf(`%q = ?`, col)
			args = append(args, where[col])
		}
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var count int
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// recentRows returns the table's newest rows as column-value maps.
func (a *SQLiteAdapter) recentRows(ctx context.Context, table string) ([]map[string]any, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("%w: table %q", ErrBadIdentifier, table)
	}

	rows, err := a.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT * FROM %q ORDER BY rowid DESC LIMIT %d`, table, sampleLimit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// digestSnapshot hashes the snapshot into a stable identity string: sorted
// table=count lines plus the serialized samples when present.
func digestSnapshot(s *model.DatabaseSnapshot) string {
	h := sha256.New()
	for _, table := range s.Tables() {
		fmt.Fprintf(h, "%s=%d\n", table, s.RowCounts[table])
	}
	if len(s.Samples) > 0 {
		tables := make([]string, 0, len(s.Samples))
		for t := range s.Samples {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		for _, t := range tables {
			raw, _ := json.Marshal(s.Samples[t])
			fmt.Fprintf(h, "sample|%s|%s\n", t, raw)
		}
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum[:16])
}

// tableCount reads a table's row count out of a snapshot, -1 when the
// snapshot or table is absent.
func tableCount(snap model.AdapterSnapshot, table string) int {
	if snap.Database == nil {
		return -1
	}
	count, ok := snap.Database.RowCounts[table]
	if !ok {
		return -1
	}
	return count
}

// tableSamples reads a table's sampled rows out of a snapshot.
func tableSamples(snap model.AdapterSnapshot, table string) []map[string]any {
	if snap.Database == nil {
		return nil
	}
	return snap.Database.Samples[table]
}

// sameRows compares two sampled row sets by serialized content.
func sameRows(a, b []map[string]any) bool {
	ra, _ := json.Marshal(a)
	rb, _ := json.Marshal(b)
	return string(ra) == string(rb)
}

// whereClauseText renders a where map deterministically for messages.
func whereClauseText(where map[string]string) string {
	cols := sortedKeys(where)
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s=%q", col, where[col])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
