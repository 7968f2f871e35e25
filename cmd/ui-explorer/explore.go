package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rob-kingsbury/ui-explorer/internal/config"
	"github.com/rob-kingsbury/ui-explorer/internal/log"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
	"github.com/rob-kingsbury/ui-explorer/internal/pipeline"
	"github.com/rob-kingsbury/ui-explorer/internal/report"
	"github.com/rob-kingsbury/ui-explorer/internal/verify"
)

// viewportPresets are the named window sizes accepted by --viewport.
// Custom sizes are written as "name:WIDTHxHEIGHT".
var viewportPresets = map[string]model.Viewport{
	"desktop": model.DefaultViewport,
	"tablet":  {Name: "tablet", Width: 768, Height: 1024},
	"mobile":  {Name: "mobile", Width: 375, Height: 812},
}

// NewExploreCmd creates the explore command.
func NewExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore [start-url...]",
		Short: "Explore a running web application and verify its behavior",
		Long: `Explore crawls a running web application as a state graph.

Every distinct page state is fingerprinted, every reachable link, button,
and form is exercised, and each transition is checked by built-in
validators (accessibility, broken links, console errors, layout). When an
action-schema file is configured, matched actions are additionally
verified against the application's backend through adapters.

Examples:
  # Explore a local application
  ui-explorer explore http://localhost:3000

  # Explore deeper, under two viewports
  ui-explorer explore -d 5 --viewport desktop,mobile http://localhost:3000

  # Verify side effects against a schema file
  ui-explorer explore -s expectations.yaml http://localhost:3000

  # Static driver for server-rendered sites (no Chrome needed)
  ui-explorer explore --static http://localhost:8080

  # Write JSON and HTML reports to ./reports
  ui-explorer explore --json --html -o reports http://localhost:3000

  # Explore several independent deployments concurrently
  ui-explorer explore -b 3 http://a.test http://b.test http://c.test`,
		Args: cobra.ArbitraryArgs,
		RunE: runExploreCmd,
	}

	// Exploration behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum number of actions in any replay path")
	cmd.Flags().Int("max-states", config.DefaultMaxStates,
		"Maximum number of distinct states to explore")
	cmd.Flags().Int("max-actions", config.DefaultMaxActions,
		"Maximum candidate actions attempted per state")
	cmd.Flags().StringSlice("viewport", nil,
		"Viewports to explore under: desktop, tablet, mobile, or name:WxH")
	cmd.Flags().DurationP("timeout", "t", config.DefaultNavigationTimeout,
		"Timeout for a single page load")

	// Driver flags
	cmd.Flags().Bool("static", false,
		"Use the plain-HTTP driver instead of Chrome (no JavaScript)")
	cmd.Flags().String("remote-url", "",
		"Connect to an already running Chrome via its debugger WebSocket URL")
	cmd.Flags().Bool("headful", false,
		"Run Chrome with a visible window")

	// Verification flags
	cmd.Flags().StringP("schemas", "s", "",
		"Path to the action-schema YAML file")
	cmd.Flags().Int64("seed", 0,
		"Seed for generated testData values (0 picks a fresh one per run)")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets explored concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .ui-explorer.yaml in current or config directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false, "Also produce a JSON report")
	cmd.Flags().BoolP("markdown", "m", false, "Also produce a Markdown report")
	cmd.Flags().Bool("html", false, "Also produce an HTML report")
	cmd.Flags().Bool("junit", false, "Also produce a JUnit XML report")
	cmd.Flags().StringP("output", "o", "",
		"Directory for file reports (default: current directory)")

	cmd.Flags().String("screenshots-dir", "",
		"Capture a PNG of every newly discovered state into this directory")

	// Persistence flags
	cmd.Flags().Bool("no-save", false,
		"Do not record this run in the history database")

	return cmd
}

// runExploreCmd executes the explore command.
func runExploreCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging. The secure handler redacts credentials,
	// cookies, and API keys, which flow through login steps and adapters.
	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runExplore(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a structured logger based on verbosity setting.
// All logging goes through the secure handler so secrets never reach the
// terminal or a CI log.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(log.NewSecureHandler(handler))
}

// buildConfig creates a Config from the config file and cobra flags.
// Flags the user set explicitly override file values; untouched flags
// leave the file's (or default) values alone.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	configPathFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	configPath := config.FindConfigFile(configPathFlag)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if configPathFlag != "" {
		return nil, fmt.Errorf("configuration file not found: %s", configPathFlag)
	}

	if len(args) > 0 {
		cfg.StartURLs = args
	}

	flags := cmd.Flags()
	if flags.Changed("depth") {
		if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-states") {
		if cfg.MaxStates, err = flags.GetInt("max-states"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-actions") {
		if cfg.MaxActions, err = flags.GetInt("max-actions"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.NavigationTimeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("schemas") {
		if cfg.SchemaFile, err = flags.GetString("schemas"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("seed") {
		if cfg.Seed, err = flags.GetInt64("seed"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("viewport") {
		names, err := flags.GetStringSlice("viewport")
		if err != nil {
			return nil, err
		}
		cfg.Viewports, err = parseViewports(names)
		if err != nil {
			return nil, err
		}
	}

	static, err := flags.GetBool("static")
	if err != nil {
		return nil, err
	}
	if static {
		cfg.Driver = config.DriverStatic
	}
	if flags.Changed("remote-url") {
		if cfg.RemoteURL, err = flags.GetString("remote-url"); err != nil {
			return nil, err
		}
	}
	headful, err := flags.GetBool("headful")
	if err != nil {
		return nil, err
	}
	if headful {
		cfg.Headless = false
	}

	if flags.Changed("screenshots-dir") {
		if cfg.ScreenshotDir, err = flags.GetString("screenshots-dir"); err != nil {
			return nil, err
		}
	}

	if err := applyReportFlags(flags, cfg); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	return cfg, nil
}

// applyReportFlags merges the report format flags into the configuration.
// The console report is always produced; flags add file formats on top.
func applyReportFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	for flag, format := range map[string]string{
		"json":     "json",
		"markdown": "markdown",
		"html":     "html",
		"junit":    "junit",
	} {
		enabled, err := flags.GetBool(flag)
		if err != nil {
			return err
		}
		if enabled && !hasFormat(cfg.Report.Formats, format) {
			cfg.Report.Formats = append(cfg.Report.Formats, format)
		}
	}
	if flags.Changed("output") {
		dir, err := flags.GetString("output")
		if err != nil {
			return err
		}
		cfg.Report.OutputDir = dir
	}
	return nil
}

func hasFormat(formats []string, format string) bool {
	for _, f := range formats {
		if f == format {
			return true
		}
	}
	return false
}

// parseViewports resolves --viewport values to window sizes.
func parseViewports(names []string) ([]model.Viewport, error) {
	vps := make([]model.Viewport, 0, len(names))
	for _, name := range names {
		if vp, ok := viewportPresets[strings.ToLower(strings.TrimSpace(name))]; ok {
			vps = append(vps, vp)
			continue
		}
		vp, err := parseCustomViewport(name)
		if err != nil {
			return nil, err
		}
		vps = append(vps, vp)
	}
	return vps, nil
}

// parseCustomViewport parses a "name:WIDTHxHEIGHT" viewport spec.
func parseCustomViewport(spec string) (model.Viewport, error) {
	name, size, ok := strings.Cut(spec, ":")
	if !ok {
		return model.Viewport{}, fmt.Errorf(
			"invalid viewport %q: use desktop, tablet, mobile, or name:WxH", spec)
	}
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return model.Viewport{}, fmt.Errorf("invalid viewport size %q: use WxH", size)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return model.Viewport{}, fmt.Errorf("invalid viewport width %q", w)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return model.Viewport{}, fmt.Errorf("invalid viewport height %q", h)
	}
	return model.Viewport{Name: name, Width: width, Height: height}, nil
}

// runExplore executes the exploration for every configured target.
func runExplore(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting exploration",
		"targets", cfg.StartURLs,
		"driver", cfg.Driver,
		"maxDepth", cfg.MaxDepth,
		"maxStates", cfg.MaxStates,
		"saveToDB", cfg.SaveToDB,
	)

	var results []*model.RunResult
	if len(cfg.StartURLs) > 1 && cfg.BatchSize > 1 {
		var err error
		results, err = runBatchExplore(ctx, cfg, logger)
		if err != nil {
			return err
		}
	} else {
		for _, target := range cfg.StartURLs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			fmt.Printf("Exploring %s...\n", target)
			startTime := time.Now()

			result, err := exploreTarget(ctx, cfg, logger, target)
			if err != nil {
				logger.Error("exploration failed", "target", target, "error", err)
				fmt.Fprintf(os.Stderr, "Exploration error for %s: %v\n", target, err)
			}
			if result != nil {
				results = append(results, result)
			}

			fmt.Printf("Exploration finished in %s\n\n", time.Since(startTime).Round(time.Millisecond))
		}
	}

	for _, r := range results {
		if r.Failed() {
			return errors.New("exploration found failures (see report above)")
		}
	}
	return nil
}

// exploreTarget runs the full pipeline for one target.
// The returned result is non-nil whenever exploration started, even if a
// later phase failed.
func exploreTarget(ctx context.Context, cfg *config.Config, logger *slog.Logger, target string) (*model.RunResult, error) {
	targetCfg := *cfg
	targetCfg.StartURLs = []string{target}

	writer, cleanup, err := buildWriters(&targetCfg, target)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	registry := verify.NewRegistry()
	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)
	p.AddSteps(
		pipeline.NewConnectAdaptersStep(&targetCfg, registry, logger),
		pipeline.NewExploreStep(&targetCfg, registry, logger),
		pipeline.NewPersistStep(&targetCfg, logger),
		pipeline.NewReportStep(writer, logger),
	)

	result := model.NewRunResult(target)
	err = p.Execute(ctx, result)
	return result, err
}

// runBatchExplore explores multiple targets concurrently.
func runBatchExplore(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]*model.RunResult, error) {
	fmt.Printf("Starting batch exploration of %d targets (concurrency: %d)...\n\n",
		len(cfg.StartURLs), cfg.BatchSize)

	startTime := time.Now()

	// The factory runs inside the batch runner's goroutines.
	var (
		cleanupMu sync.Mutex
		cleanups  []func()
	)

	runner := pipeline.NewBatchRunner(
		func(target string) *pipeline.Pipeline {
			targetCfg := *cfg
			targetCfg.StartURLs = []string{target}

			writer, cleanup, err := buildWriters(&targetCfg, target)
			if err != nil {
				// A report that cannot reach its file still reaches the
				// terminal.
				logger.Warn("file report unavailable, using console only",
					"target", target, "error", err)
				writer = report.NewConsoleWriter(os.Stdout)
				cleanup = func() {}
			}
			cleanupMu.Lock()
			cleanups = append(cleanups, cleanup)
			cleanupMu.Unlock()

			registry := verify.NewRegistry()
			p := pipeline.New(
				pipeline.WithLogger(logger),
				pipeline.WithContinueOnError(true),
			)
			p.AddSteps(
				pipeline.NewConnectAdaptersStep(&targetCfg, registry, logger),
				pipeline.NewExploreStep(&targetCfg, registry, logger),
				pipeline.NewPersistStep(&targetCfg, logger),
				pipeline.NewReportStep(writer, logger),
			)
			return p
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	results, err := runner.Run(ctx, cfg.StartURLs)
	for _, cleanup := range cleanups {
		cleanup()
	}

	fmt.Printf("\nBatch exploration completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return results, err
}

// buildWriters assembles the report writer stack for one target: console
// to stdout always, file formats into the output directory.
func buildWriters(cfg *config.Config, target string) (report.Writer, func(), error) {
	writers := []report.Writer{report.NewConsoleWriter(os.Stdout)}
	var files []*os.File
	cleanup := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	for _, format := range cfg.Report.Formats {
		if format == "console" {
			continue
		}
		f, err := createReportFile(cfg.Report.OutputDir, target, format)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		files = append(files, f)
		writers = append(writers, newFormatWriter(format, f))
	}

	return report.NewMultiWriter(writers...), cleanup, nil
}

// newFormatWriter creates the writer for a named file format.
func newFormatWriter(format string, output io.Writer) report.Writer {
	switch format {
	case "json":
		return report.NewJSONWriter(output)
	case "markdown":
		return report.NewMarkdownWriter(output)
	case "html":
		return report.NewHTMLWriter(output)
	case "junit":
		return report.NewJUnitWriter(output)
	default:
		return report.NewConsoleWriter(output, report.WithColor(false))
	}
}

// reportExtensions maps formats to file extensions.
var reportExtensions = map[string]string{
	"json":     "json",
	"markdown": "md",
	"html":     "html",
	"junit":    "xml",
}

// createReportFile opens the output file for one report format.
// Reports may contain application data, so files are owner-only.
func createReportFile(dir, target, format string) (*os.File, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	ext := reportExtensions[format]
	if ext == "" {
		ext = format
	}
	name := fmt.Sprintf("ui-explorer-%s.%s", sanitizeTarget(target), ext)
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, nil
}

// sanitizeTarget turns a target URL into a filesystem-safe name.
func sanitizeTarget(target string) string {
	target = strings.TrimPrefix(target, "http://")
	target = strings.TrimPrefix(target, "https://")
	var sb strings.Builder
	for _, r := range target {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}
