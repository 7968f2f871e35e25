package expect

import "errors"

// Schema configuration errors.
//
// Design decision: We use package-level sentinel errors rather than creating
// new error instances at each validation site. This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Loader errors wrap these with the schema name and
// field that failed.
var (
	// ErrNoSchemaName is returned when a schema has no name. Names identify
	// schemas in reports and verification results.
	ErrNoSchemaName = errors.New("schema has no name")

	// ErrEmptyMatcher is returned when a schema's matcher specifies no
	// criteria. An empty matcher would match every action, which is never
	// what a declarative contract means.
	ErrEmptyMatcher = errors.New("matcher has no criteria: set selector, text, role, or url")

	// ErrInvalidPattern is returned when a matcher or expectation regular
	// expression does not compile.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrUnknownExpectationKind is returned for expectation kinds outside
	// database/api/ui/service.
	ErrUnknownExpectationKind = errors.New("unknown expectation kind")

	// ErrUnresolvedTestData is returned when a {{testData.KEY}} placeholder
	// references a key absent from the testData table.
	ErrUnresolvedTestData = errors.New("unresolved testData placeholder")

	// ErrNestedFollowUp is returned when a followUp schema declares its own
	// followUp. Chains are limited to a single level.
	ErrNestedFollowUp = errors.New("followUp schemas cannot nest another followUp")

	// ErrSchemasNotFound is returned when the schema file does not exist.
	ErrSchemasNotFound = errors.New("schema file not found")
)
