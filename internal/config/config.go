package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Default configuration values.
// These values are tuned for a locally running application under test,
// where navigation is fast and the cost of an extra action is low.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "ui-explorer"

	// DefaultMaxDepth limits how many actions deep exploration goes from
	// the entry URL. Three levels reaches most flows (list -> detail ->
	// edit) while keeping replay paths short; deep paths multiply replay
	// cost because every backtrack re-executes the whole path.
	DefaultMaxDepth = 3

	// DefaultMaxStates caps the total number of distinct states explored.
	// This prevents runaway exploration on applications with generated
	// content, where every action mints a page that fingerprints fresh.
	DefaultMaxStates = 50

	// DefaultMaxActions caps the candidate actions attempted per state.
	// Unbounded fan-out from a single state makes the crawl non-terminating
	// in practice; 15 covers every element on typical pages.
	DefaultMaxActions = 15

	// DefaultNavigationTimeout bounds a single page load. Local targets
	// load in well under a second; 30 seconds tolerates a cold dev server
	// without letting a hung route stall the run for minutes.
	DefaultNavigationTimeout = 30 * time.Second

	// DefaultActionTimeout bounds a single element interaction, including
	// the visibility and enabled waits that precede it.
	DefaultActionTimeout = 10 * time.Second

	// DefaultSettleTimeout bounds the network-idle wait after an action.
	// A page that never goes idle (polling, websockets) is treated as
	// settled when the timeout expires; a timeout here is never an error.
	DefaultSettleTimeout = 5 * time.Second

	// DefaultLinkProbeTimeout bounds one out-of-band link liveness probe.
	// A link slower than this is reported as a timeout issue.
	DefaultLinkProbeTimeout = 5 * time.Second

	// DefaultLinkConcurrency is the worker-pool size for link probes.
	// Probes hit the application under test; a small fixed pool keeps the
	// probe traffic from distorting the behavior being explored.
	DefaultLinkConcurrency = 5

	// DefaultBatchSize is the number of targets explored concurrently in
	// batch mode. Each target gets its own browser session, so this is
	// bounded by local Chrome capacity rather than by the targets.
	DefaultBatchSize = 3
)

// Driver selects the browser-control implementation.
type Driver string

const (
	// DriverRod drives a real Chrome via go-rod. The default: it executes
	// JavaScript, so dynamic applications expose their real action surface.
	DriverRod Driver = "rod"

	// DriverStatic fetches pages over plain HTTP and parses the served
	// HTML. No JavaScript runs; only server-rendered elements are seen.
	// Used for static sites and in tests.
	DriverStatic Driver = "static"
)

// AdapterConfig configures one backend verifier adapter.
type AdapterConfig struct {
	// Kind selects the adapter implementation: "sqlite", "payments",
	// or "service".
	Kind string `yaml:"kind"`

	// DSN is the connection string for database adapters: the path to the
	// application's SQLite file.
	DSN string `yaml:"dsn,omitempty"`

	// URL is the base URL for HTTP-probed adapters (payments, service).
	URL string `yaml:"url,omitempty"`

	// Key is the credential sent to HTTP-probed adapters.
	Key string `yaml:"key,omitempty"`

	// Tables restricts a database adapter's snapshots to these tables.
	// Empty means every table.
	Tables []string `yaml:"tables,omitempty"`

	// SampleRows enables capturing the most recent rows of each table in
	// snapshots, not just row counts. Costs one extra query per table per
	// capture.
	SampleRows bool `yaml:"sampleRows,omitempty"`
}

// LoginConfig describes how to authenticate before exploration starts.
// The steps run once on the login URL; exploration begins afterwards with
// the session cookies the login produced.
type LoginConfig struct {
	// URL is the login page address.
	URL string `yaml:"url"`

	// Steps are the interactions that perform the login, in order:
	// fill username, fill password, click submit.
	Steps []LoginStep `yaml:"steps"`

	// SuccessSelector, when set, must be visible after the steps complete
	// or the login is treated as failed.
	SuccessSelector string `yaml:"successSelector,omitempty"`

	// UserID and Role describe the account being used, recorded on every
	// state's auth context.
	UserID string `yaml:"userId,omitempty"`
	Role   string `yaml:"role,omitempty"`
}

// LoginStep is one interaction of the login sequence.
type LoginStep struct {
	Action  string `yaml:"action,omitempty"` // fill (default), click, select, check
	Locator string `yaml:"locator"`
	Value   string `yaml:"value,omitempty"`
}

// ToAction converts the step into an executable action.
func (s LoginStep) ToAction() model.Action {
	t := model.ParseActionType(s.Action)
	if t == model.ActionUnknown {
		t = model.ActionFill
	}
	return model.Action{Type: t, Locator: s.Locator, Value: s.Value}
}

// ReportConfig selects output formats and destination.
type ReportConfig struct {
	// Formats lists the outputs to produce: console, json, markdown,
	// html, junit. Empty means console only.
	Formats []string `yaml:"formats,omitempty"`

	// OutputDir is where file formats are written. Empty writes to the
	// current directory.
	OutputDir string `yaml:"outputDir,omitempty"`
}

// Config holds all configuration options for an exploration run.
// This struct is populated from CLI flags and the optional YAML file and
// passed through the application via dependency injection rather than
// global state.
//
// Design decision: We use a single flat struct with small nested structs
// only where a group is loaded as a YAML block (login, adapters, report).
// The number of options is manageable, and deeper nesting would add
// complexity without significant benefit.
type Config struct {
	// StartURLs are the entry points to explore. Each becomes a start
	// node of the state graph; in batch mode each gets its own session.
	StartURLs []string `yaml:"startUrls"`

	// Viewports are the window sizes to explore under. States observed
	// under different viewports are distinct. Empty means desktop only.
	Viewports []model.Viewport `yaml:"viewports,omitempty"`

	// MaxDepth is the maximum number of actions in any replay path.
	MaxDepth int `yaml:"maxDepth,omitempty"`

	// MaxStates caps the total number of distinct states explored.
	MaxStates int `yaml:"maxStates,omitempty"`

	// MaxActions caps the candidate actions attempted per state.
	MaxActions int `yaml:"maxActions,omitempty"`

	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration `yaml:"navigationTimeout,omitempty"`

	// ActionTimeout bounds a single element interaction.
	ActionTimeout time.Duration `yaml:"actionTimeout,omitempty"`

	// SettleTimeout bounds the network-idle wait after an action.
	SettleTimeout time.Duration `yaml:"settleTimeout,omitempty"`

	// LinkProbeTimeout bounds one link liveness probe.
	LinkProbeTimeout time.Duration `yaml:"linkProbeTimeout,omitempty"`

	// IgnoreSelectors lists selector or label substrings whose elements
	// are never interacted with. Add the logout button here: clicking it
	// destroys the session every remaining task depends on.
	IgnoreSelectors []string `yaml:"ignoreSelectors,omitempty"`

	// IncludeQuery folds the query string into state identity. Enable for
	// applications that route on query parameters.
	IncludeQuery bool `yaml:"includeQuery,omitempty"`

	// Driver selects the browser-control implementation.
	Driver Driver `yaml:"driver,omitempty"`

	// Headless runs the rod driver without a visible window. Disable to
	// watch the exploration live while debugging schemas.
	Headless bool `yaml:"headless,omitempty"`

	// RemoteURL connects the rod driver to an already running Chrome via
	// its WebSocket debugger URL instead of launching one.
	RemoteURL string `yaml:"remoteUrl,omitempty"`

	// Login, when set, authenticates before exploration starts.
	Login *LoginConfig `yaml:"login,omitempty"`

	// Adapters configures backend verifiers, keyed by the adapter name
	// that schemas reference.
	Adapters map[string]AdapterConfig `yaml:"adapters,omitempty"`

	// SchemaFile is the path to the action-schema YAML file.
	SchemaFile string `yaml:"schemaFile,omitempty"`

	// TestData overlays the schema file's testData table. Values here win
	// over the file's, letting a CI job inject per-run unique values.
	TestData map[string]string `yaml:"testData,omitempty"`

	// Seed drives the generated testData values (email, user, password,
	// title, number, uuid). Zero means a fresh seed per run; setting it
	// replays a run with identical generated values.
	Seed int64 `yaml:"seed,omitempty"`

	// Report selects output formats and destination.
	Report ReportConfig `yaml:"report,omitempty"`

	// ScreenshotDir, when set, receives a PNG of every newly discovered
	// state. Requires the rod driver; the static driver cannot render.
	ScreenshotDir string `yaml:"screenshotDir,omitempty"`

	// DBDir is the directory for the run-history SQLite database.
	// When empty, runs are not persisted and compare has nothing to read.
	// Defaults to the XDG data directory.
	DBDir string `yaml:"dbDir,omitempty"`

	// SaveToDB indicates whether to save run results to the database.
	SaveToDB bool `yaml:"saveToDb,omitempty"`

	// BatchSize is the number of targets explored concurrently in batch
	// mode.
	BatchSize int `yaml:"batchSize,omitempty"`

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool `yaml:"-"`
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (timeouts, caps).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Viewports:         []model.Viewport{model.DefaultViewport},
		MaxDepth:          DefaultMaxDepth,
		MaxStates:         DefaultMaxStates,
		MaxActions:        DefaultMaxActions,
		NavigationTimeout: DefaultNavigationTimeout,
		ActionTimeout:     DefaultActionTimeout,
		SettleTimeout:     DefaultSettleTimeout,
		LinkProbeTimeout:  DefaultLinkProbeTimeout,
		Driver:            DriverRod,
		Headless:          true,
		BatchSize:         DefaultBatchSize,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for ui-explorer.
// On Linux: ~/.local/share/ui-explorer
// On macOS: ~/Library/Application Support/ui-explorer
// On Windows: %LOCALAPPDATA%\ui-explorer
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for ui-explorer.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// We return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.StartURLs) == 0 {
		return ErrNoTarget
	}
	for _, raw := range c.StartURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ErrInvalidTarget
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return ErrInvalidTarget
		}
	}

	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.MaxStates <= 0 {
		return ErrInvalidMaxStates
	}
	if c.MaxActions <= 0 {
		return ErrInvalidMaxActions
	}
	if c.NavigationTimeout <= 0 || c.ActionTimeout <= 0 || c.SettleTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	switch c.Driver {
	case DriverRod, DriverStatic, "":
	default:
		return ErrUnknownDriver
	}

	for name, a := range c.Adapters {
		switch a.Kind {
		case "sqlite":
			if a.DSN == "" {
				return adapterError(name, ErrAdapterMissingDSN)
			}
		case "payments", "service":
			if a.URL == "" {
				return adapterError(name, ErrAdapterMissingURL)
			}
		default:
			return adapterError(name, ErrUnknownAdapterKind)
		}
	}

	if c.Login != nil {
		if c.Login.URL == "" || len(c.Login.Steps) == 0 {
			return ErrIncompleteLogin
		}
	}

	for _, f := range c.Report.Formats {
		switch f {
		case "console", "json", "markdown", "html", "junit":
		default:
			return ErrUnknownReportFormat
		}
	}

	return nil
}

// ViewportsOrDefault returns the configured viewports, falling back to the
// default desktop viewport when none are set.
func (c *Config) ViewportsOrDefault() []model.Viewport {
	if len(c.Viewports) == 0 {
		return []model.Viewport{model.DefaultViewport}
	}
	return c.Viewports
}
