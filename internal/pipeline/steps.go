package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/browser"
	"github.com/rob-kingsbury/ui-explorer/internal/config"
	"github.com/rob-kingsbury/ui-explorer/internal/crawler"
	"github.com/rob-kingsbury/ui-explorer/internal/database"
	"github.com/rob-kingsbury/ui-explorer/internal/expect"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
	"github.com/rob-kingsbury/ui-explorer/internal/report"
	"github.com/rob-kingsbury/ui-explorer/internal/validator"
	"github.com/rob-kingsbury/ui-explorer/internal/verify"
)

// ConnectAdaptersStep builds the backend verifier adapters from the
// configuration and connects them all.
//
// Design decision: Adapter connection is its own fatal step rather than part
// of exploration because:
// 1. A misconfigured DSN should fail the run before a browser is launched
// 2. Connected adapters are shared with the exploration step through the
//    registry, so the lifecycle has to start before exploration
// 3. With no adapters configured the step is a no-op, and database/service
//    expectations fail individually with a configuration message
type ConnectAdaptersStep struct {
	// cfg supplies the adapter declarations.
	cfg *config.Config

	// registry receives the built adapters. Shared with ExploreStep.
	registry *verify.Registry

	// logger for structured logging.
	logger *slog.Logger
}

// NewConnectAdaptersStep creates a step that populates and connects the
// given registry from the configuration's adapter declarations.
func NewConnectAdaptersStep(cfg *config.Config, registry *verify.Registry, logger *slog.Logger) *ConnectAdaptersStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectAdaptersStep{cfg: cfg, registry: registry, logger: logger}
}

// Name returns the step name.
func (s *ConnectAdaptersStep) Name() string {
	return "connect_adapters"
}

// Do builds every configured adapter, registers it, and connects them all.
// Any connection failure is fatal: exploring with a half-connected backend
// would report verification failures that are really configuration errors.
func (s *ConnectAdaptersStep) Do(ctx context.Context, _ *model.RunResult) error {
	for name, ac := range s.cfg.Adapters {
		adapter, err := buildAdapter(name, ac)
		if err != nil {
			return err
		}
		if err := s.registry.Register(adapter); err != nil {
			return err
		}
		s.logger.Debug("adapter registered", "name", name, "kind", ac.Kind)
	}

	if s.registry.Len() == 0 {
		s.logger.Debug("no adapters configured")
		return nil
	}

	if err := s.registry.ConnectAll(ctx); err != nil {
		return fmt.Errorf("connect adapters: %w", err)
	}
	s.logger.Info("adapters connected", "adapters", s.registry.Names())
	return nil
}

// buildAdapter constructs one adapter from its configuration block.
// Unknown kinds are rejected by config validation before the pipeline runs;
// the error here covers programmatic construction.
func buildAdapter(name string, ac config.AdapterConfig) (verify.Adapter, error) {
	switch ac.Kind {
	case "sqlite":
		var opts []verify.SQLiteOption
		if len(ac.Tables) > 0 {
			opts = append(opts, verify.WithTables(ac.Tables))
		}
		if ac.SampleRows {
			opts = append(opts, verify.WithSampleRows())
		}
		return verify.NewSQLiteAdapter(name, ac.DSN, opts...), nil
	case "payments":
		return verify.NewPaymentsAdapter(name, ac.URL, ac.Key), nil
	case "service":
		return verify.NewServiceAdapter(name, ac.URL, ac.Key), nil
	default:
		return nil, fmt.Errorf("adapter %q: unknown kind %q", name, ac.Kind)
	}
}

// ExploreStep runs the state-graph exploration and fills the run result.
// This is the core step: it owns the browser session for the duration of
// the run and translates the explorer's outcome into the result model.
type ExploreStep struct {
	// cfg drives session construction, caps, and schema loading.
	cfg *config.Config

	// registry provides connected adapters to the expectation engine.
	registry *verify.Registry

	// session overrides session construction, used by tests.
	session browser.Session

	// logger for structured logging.
	logger *slog.Logger
}

// ExploreStepOption configures an ExploreStep.
type ExploreStepOption func(*ExploreStep)

// WithExploreSession injects an already constructed session instead of
// building one from the configuration. The step still closes it.
func WithExploreSession(session browser.Session) ExploreStepOption {
	return func(s *ExploreStep) {
		s.session = session
	}
}

// NewExploreStep creates the exploration step.
func NewExploreStep(cfg *config.Config, registry *verify.Registry, logger *slog.Logger, opts ...ExploreStepOption) *ExploreStep {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExploreStep{cfg: cfg, registry: registry, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ExploreStep) Name() string {
	return "explore"
}

// Do explores the target and fills the result with the graph, issues, and
// verifications. The result is populated even when exploration aborts, so
// later steps can persist and report the partial graph.
func (s *ExploreStep) Do(ctx context.Context, result *model.RunResult) error {
	session := s.session
	if session == nil {
		var err error
		session, err = s.newSession()
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Debug("session close failed", "error", err)
		}
	}()

	engine, err := s.loadEngine()
	if err != nil {
		return err
	}

	explorerOpts := []crawler.Option{
		crawler.WithLogger(s.logger),
		crawler.WithValidators(validator.Defaults(s.cfg.LinkProbeTimeout, config.DefaultLinkConcurrency)),
	}
	if engine != nil {
		explorerOpts = append(explorerOpts, crawler.WithEngine(engine))
	}
	if s.registry != nil && s.registry.Len() > 0 {
		explorerOpts = append(explorerOpts, crawler.WithRegistry(s.registry))
	}
	if s.cfg.ScreenshotDir != "" {
		explorerOpts = append(explorerOpts, crawler.WithScreenshotDir(s.cfg.ScreenshotDir))
	}

	explorer := crawler.New(session, s.cfg, explorerOpts...)
	outcome, runErr := explorer.Run(ctx)

	result.FinishedAt = time.Now().UTC()
	if outcome != nil {
		result.States = outcome.Graph.States()
		result.Transitions = outcome.Graph.Transitions()
		result.Issues = outcome.Graph.Issues()
		model.SortIssues(result.Issues)
		result.Verifications = outcome.Graph.Verifications()
		result.ActionsExecuted = outcome.ActionsExecuted
		result.HitMaxStates = outcome.HitMaxStates
		result.HitMaxDepth = outcome.HitMaxDepth
	}
	if runErr != nil {
		result.Error = runErr.Error()
		return fmt.Errorf("exploration aborted: %w", runErr)
	}

	s.logger.Info("exploration complete",
		"target", result.Target,
		"states", len(result.States),
		"transitions", len(result.Transitions),
		"issues", len(result.Issues),
	)
	return nil
}

// newSession builds the browser session selected by the configuration.
func (s *ExploreStep) newSession() (browser.Session, error) {
	timeouts := browser.Timeouts{
		Navigation: s.cfg.NavigationTimeout,
		Action:     s.cfg.ActionTimeout,
		Settle:     s.cfg.SettleTimeout,
	}
	switch s.cfg.Driver {
	case config.DriverStatic:
		return browser.NewStaticSession(browser.StaticConfig{
			Timeouts: timeouts,
			Logger:   s.logger,
		})
	default:
		return browser.NewRodSession(browser.RodConfig{
			Headless:  s.cfg.Headless,
			RemoteURL: s.cfg.RemoteURL,
			Timeouts:  timeouts,
			Logger:    s.logger,
		})
	}
}

// loadEngine loads the action-schema file, returning a nil engine when no
// file is configured: exploration then runs without verification.
func (s *ExploreStep) loadEngine() (*expect.Engine, error) {
	if s.cfg.SchemaFile == "" {
		return nil, nil
	}
	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	file, err := expect.LoadFile(s.cfg.SchemaFile, seed, s.cfg.TestData)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	var lookup expect.VerifierLookup
	if s.registry != nil {
		lookup = s.registry.Verifier
	}
	s.logger.Debug("schemas loaded", "file", s.cfg.SchemaFile, "schemas", len(file.Schemas))
	return expect.NewEngine(file.Schemas, lookup), nil
}

// PersistStep saves the run result to the run-history database.
type PersistStep struct {
	// cfg supplies the database directory and the save toggle.
	cfg *config.Config

	// logger for structured logging.
	logger *slog.Logger
}

// NewPersistStep creates the persistence step.
func NewPersistStep(cfg *config.Config, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{cfg: cfg, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do saves the result when persistence is enabled. A locked store is
// reported as an error so a second concurrent run does not silently lose
// its history.
func (s *PersistStep) Do(ctx context.Context, result *model.RunResult) error {
	if !s.cfg.SaveToDB || s.cfg.DBDir == "" {
		s.logger.Debug("persistence disabled, skipping")
		return nil
	}

	store, err := database.Open(s.cfg.DBDir, database.DefaultOptions())
	if err != nil {
		if errors.Is(err, database.ErrStoreLocked) {
			return fmt.Errorf("run store at %s is in use by another run: %w", s.cfg.DBDir, err)
		}
		return fmt.Errorf("open run store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			s.logger.Debug("run store close failed", "error", err)
		}
	}()

	if err := store.SaveRun(ctx, result); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	s.logger.Info("run saved", "run_id", result.RunID, "db", store.Path())
	return nil
}

// ReportStep renders the run result through the configured writers.
type ReportStep struct {
	// writer is the (usually multi-) writer producing all output formats.
	writer report.Writer

	// logger for structured logging.
	logger *slog.Logger
}

// NewReportStep creates the reporting step over an already assembled
// writer. The caller decides formats and destinations; the step only
// triggers rendering, so it stays independent of file handling.
func NewReportStep(writer report.Writer, logger *slog.Logger) *ReportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportStep{writer: writer, logger: logger}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do renders the result.
func (s *ReportStep) Do(_ context.Context, result *model.RunResult) error {
	n, err := s.writer.Write(result)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	s.logger.Debug("report written", "bytes", n)
	return nil
}
