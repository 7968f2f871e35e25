package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/browser"
	"github.com/rob-kingsbury/ui-explorer/internal/catalog"
	"github.com/rob-kingsbury/ui-explorer/internal/config"
	"github.com/rob-kingsbury/ui-explorer/internal/expect"
	"github.com/rob-kingsbury/ui-explorer/internal/fingerprint"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
	"github.com/rob-kingsbury/ui-explorer/internal/validator"
	"github.com/rob-kingsbury/ui-explorer/internal/verify"
)

// errEndTask aborts the remaining actions of the current task. Raised when
// the reset-and-replay recovery itself fails: the session can no longer be
// returned to the task's state, so continuing would act on the wrong page.
var errEndTask = errors.New("task ended early")

// Explorer runs the breadth-first exploration loop: dequeue a task, reach
// its state, validate it, try its actions, enqueue whatever new states the
// actions reveal.
type Explorer struct {
	session    browser.Session
	cfg        *config.Config
	fp         *fingerprint.Fingerprinter
	engine     *expect.Engine
	registry   *verify.Registry
	validators []validator.Validator
	logger     *slog.Logger

	screenshotDir string

	graph    *model.Graph
	frontier []model.Task
	auth     model.AuthState

	actionsExecuted int
	hitMaxStates    bool
	hitMaxDepth     bool
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithEngine sets the expectation engine. Without one, actions execute but
// nothing is verified.
func WithEngine(e *expect.Engine) Option {
	return func(x *Explorer) { x.engine = e }
}

// WithRegistry sets the adapter registry used for backend snapshots.
func WithRegistry(r *verify.Registry) Option {
	return func(x *Explorer) { x.registry = r }
}

// WithValidators sets the page validators run on every new state.
func WithValidators(vs []validator.Validator) Option {
	return func(x *Explorer) { x.validators = vs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Explorer) { x.logger = l }
}

// WithScreenshotDir enables a screenshot of every newly discovered state,
// written as <fingerprint prefix>.png under dir. Capture failures are
// logged and skipped; the static driver cannot render, so it never
// produces any.
func WithScreenshotDir(dir string) Option {
	return func(x *Explorer) { x.screenshotDir = dir }
}

// New creates an Explorer over one browser session.
func New(session browser.Session, cfg *config.Config, opts ...Option) *Explorer {
	var fpOpts []fingerprint.Option
	if cfg.IncludeQuery {
		fpOpts = append(fpOpts, fingerprint.WithQuery())
	}

	e := &Explorer{
		session: session,
		cfg:     cfg,
		fp:      fingerprint.New(fpOpts...),
		logger:  slog.Default(),
		graph:   model.NewGraph(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is what an exploration produced, complete or not.
type Outcome struct {
	// Graph is the explored state graph.
	Graph *model.Graph

	// ActionsExecuted counts every interaction performed, replays included.
	ActionsExecuted int

	// HitMaxStates and HitMaxDepth report whether a cap cut exploration
	// short, making the graph a lower bound rather than exhaustive.
	HitMaxStates bool
	HitMaxDepth  bool
}

// Run explores until the frontier drains or a cap is reached. The returned
// outcome is valid even on error; the error is non-nil only for run-fatal
// conditions: the browser session dying or the context being cancelled.
func (e *Explorer) Run(ctx context.Context) (*Outcome, error) {
	if e.cfg.Login != nil {
		if err := e.login(ctx); err != nil {
			if fatal(err) {
				return e.outcome(), err
			}
			// An unauthenticated run still explores the public surface.
			e.logger.Warn("login failed, exploring unauthenticated", "error", err)
		}
	}

	// Viewports are seeded in order; within one viewport, tasks proceed
	// breadth-first. One session means one viewport at a time.
	for _, vp := range e.cfg.ViewportsOrDefault() {
		for _, target := range e.cfg.StartURLs {
			e.frontier = append(e.frontier, model.Task{URL: target, Viewport: vp})
		}
	}

	for len(e.frontier) > 0 {
		// Cancellation is honored at the dequeue boundary so a task is
		// never half-explored.
		if err := ctx.Err(); err != nil {
			return e.outcome(), err
		}

		task := e.frontier[0]
		e.frontier = e.frontier[1:]

		if task.Depth > e.cfg.MaxDepth {
			e.hitMaxDepth = true
			continue
		}
		if e.graph.Len() >= e.cfg.MaxStates {
			e.hitMaxStates = true
			continue
		}

		if err := e.visit(ctx, task); err != nil {
			if errors.Is(err, errEndTask) {
				continue
			}
			return e.outcome(), err
		}
	}

	return e.outcome(), nil
}

func (e *Explorer) outcome() *Outcome {
	return &Outcome{
		Graph:           e.graph,
		ActionsExecuted: e.actionsExecuted,
		HitMaxStates:    e.hitMaxStates,
		HitMaxDepth:     e.hitMaxDepth,
	}
}

// login runs the configured authentication sequence once, before any
// exploration. Success stamps the auth context carried by every state.
func (e *Explorer) login(ctx context.Context) error {
	lc := e.cfg.Login
	e.logger.Info("logging in", "url", lc.URL)

	if err := e.session.Navigate(ctx, lc.URL); err != nil {
		return fmt.Errorf("login navigation: %w", err)
	}
	for _, step := range lc.Steps {
		if err := e.perform(ctx, step.ToAction()); err != nil {
			return fmt.Errorf("login step %s: %w", step.Locator, err)
		}
	}
	_ = e.session.WaitSettle(ctx)

	if lc.SuccessSelector != "" {
		visible, err := e.session.Visible(ctx, lc.SuccessSelector)
		if err != nil {
			return fmt.Errorf("login success check: %w", err)
		}
		if !visible {
			return fmt.Errorf("login success selector %q not visible", lc.SuccessSelector)
		}
	}

	e.auth = model.AuthState{Authenticated: true, UserID: lc.UserID, Role: lc.Role}
	return nil
}

// visit executes one task: reach the state, dedup, validate, sweep actions.
func (e *Explorer) visit(ctx context.Context, task model.Task) error {
	if err := e.session.SetViewport(ctx, task.Viewport); err != nil {
		if fatal(err) {
			return err
		}
		e.logger.Warn("viewport change failed", "viewport", task.Viewport.Name, "error", err)
		return nil
	}
	if err := e.reach(ctx, task); err != nil {
		if fatal(err) {
			return err
		}
		e.logger.Warn("task unreachable", "url", task.URL, "depth", task.Depth, "error", err)
		return nil
	}

	obs, err := e.session.Observe(ctx)
	if err != nil {
		if fatal(err) {
			return err
		}
		e.logger.Warn("observation failed", "url", task.URL, "error", err)
		return nil
	}

	snaps := e.capture(ctx)
	state := e.fp.Capture(obs, task.Viewport, e.auth, snaps)

	// Dedup before validators: a known fingerprint means this task found
	// nothing new, however it got here.
	if e.graph.Has(state.Fingerprint) {
		e.logger.Debug("duplicate state discarded",
			"fingerprint", state.Fingerprint, "url", state.URL)
		return nil
	}

	state.Path = task.Path.Clone()
	state.Depth = task.Depth
	e.graph.AddState(state)
	if task.Depth == 0 {
		e.graph.MarkStart(state.Fingerprint)
	}
	e.logger.Info("state discovered",
		"fingerprint", state.Fingerprint,
		"url", state.URL,
		"depth", task.Depth,
		"viewport", task.Viewport.Name,
		"states", e.graph.Len())
	e.screenshot(ctx, state)

	for _, issue := range validator.RunAll(ctx, e.validators, e.session, obs, task.Viewport.Name, e.logger) {
		issue.StateFingerprint = state.Fingerprint
		e.graph.AddIssue(state.Fingerprint, issue)
	}

	actions := e.discover(obs, state.URL)
	for _, action := range actions {
		if err := e.attempt(ctx, task, state, action); err != nil {
			return err
		}
	}
	return nil
}

// discover finds and orders the state's candidate actions.
func (e *Explorer) discover(obs *model.Observation, pageURL string) []model.Action {
	opts := []catalog.Option{
		catalog.WithMaxActions(e.cfg.MaxActions),
		catalog.WithIgnoreList(e.cfg.IgnoreSelectors),
	}
	if u, err := url.Parse(pageURL); err == nil {
		opts = append(opts, catalog.WithBaseHost(u.Host))
	}
	if e.engine != nil {
		opts = append(opts, catalog.WithSchemaMatcher(func(a model.Action) (string, bool) {
			if s, ok := e.engine.Match(a, pageURL); ok {
				return s.Name, true
			}
			return "", false
		}))
	}

	cat := catalog.New(opts...)
	return cat.Prioritize(cat.Discover(obs))
}

// attempt executes one action from a known state: snapshot, setup, execute,
// settle, fingerprint the result, verify, record the edge, enqueue, reset.
// The returned error is errEndTask when recovery failed, or run-fatal.
func (e *Explorer) attempt(ctx context.Context, task model.Task, state *model.AppState, action model.Action) error {
	var schema *expect.Schema
	if e.engine != nil {
		if s, ok := e.engine.Match(action, state.URL); ok {
			schema = s
			action.SchemaName = s.Name
		}
	}

	// The pre-snapshot must exist before anything mutates: it is the
	// baseline every database/service expectation compares against.
	var pre map[string]model.AdapterSnapshot
	if schema != nil {
		pre = e.capture(ctx)
	}

	if schema != nil {
		for _, step := range schema.Setup {
			if err := e.perform(ctx, step.ToAction()); err != nil {
				if fatal(err) {
					return err
				}
				if step.Optional {
					e.logger.Debug("optional setup step skipped",
						"schema", schema.Name, "locator", step.Locator, "error", err)
					continue
				}
				e.logger.Warn("setup step failed, action skipped",
					"schema", schema.Name, "locator", step.Locator, "error", err)
				return e.reset(ctx, task)
			}
		}
	}

	if err := e.perform(ctx, action); err != nil {
		if fatal(err) {
			return err
		}
		e.recordFailedAction(state, action, task.Viewport.Name, err)
		return e.reset(ctx, task)
	}
	_ = e.session.WaitSettle(ctx)

	postObs, err := e.session.Observe(ctx)
	if err != nil {
		if fatal(err) {
			return err
		}
		e.recordFailedAction(state, action, task.Viewport.Name, err)
		return e.reset(ctx, task)
	}
	post := e.capture(ctx)

	var verifications []model.VerificationResult
	if schema != nil {
		verifications = e.engine.Evaluate(ctx, schema, action, pre, post, e.session, postObs.Network)

		if schema.FollowUp != nil {
			fuResults, fuObs := e.followUp(ctx, schema.FollowUp, post, postObs)
			verifications = append(verifications, fuResults...)
			if fuObs != nil {
				postObs = fuObs
				post = e.capture(ctx)
			}
		}

		for _, v := range verifications {
			if v.Passed {
				continue
			}
			issue := model.NewIssue("expectation-failed",
				fmt.Sprintf("%s: %s", v.Expectation, v.Message))
			issue.StateFingerprint = state.Fingerprint
			issue.Action = action.String()
			issue.Detail = v.Schema
			e.graph.AddIssue(state.Fingerprint, issue)
		}
	}

	postState := e.fp.Capture(postObs, task.Viewport, e.auth, post)
	e.graph.AddTransition(model.Transition{
		From:          state.Fingerprint,
		Action:        action,
		To:            postState.Fingerprint,
		Viewport:      task.Viewport.Name,
		At:            time.Now().UTC(),
		Verifications: verifications,
	})

	if postState.Fingerprint != state.Fingerprint && !e.graph.Has(postState.Fingerprint) {
		if e.graph.Len() >= e.cfg.MaxStates {
			e.hitMaxStates = true
		} else if task.Depth+1 > e.cfg.MaxDepth {
			e.hitMaxDepth = true
		} else {
			e.frontier = append(e.frontier, task.Extend(action))
		}
	}

	return e.reset(ctx, task)
}

// followUp executes the single chained action a schema declares: find a
// matching action on the post page, run it, evaluate its expectations.
// Returns nil results when no action on the page matches.
func (e *Explorer) followUp(ctx context.Context, fu *expect.Schema, pre map[string]model.AdapterSnapshot, obs *model.Observation) ([]model.VerificationResult, *model.Observation) {
	var target *model.Action
	for _, candidate := range e.discover(obs, obs.URL) {
		if fu.Match.Matches(candidate, obs.URL) {
			c := candidate
			target = &c
			break
		}
	}
	if target == nil {
		return []model.VerificationResult{{
			Schema:      fu.Name,
			Expectation: "follow-up action present",
			Passed:      false,
			Message:     fmt.Sprintf("no action on %s matches follow-up schema %q", obs.URL, fu.Name),
		}}, nil
	}
	target.SchemaName = fu.Name

	for _, step := range fu.Setup {
		if err := e.perform(ctx, step.ToAction()); err != nil {
			if step.Optional {
				continue
			}
			return []model.VerificationResult{{
				Schema:      fu.Name,
				Expectation: "follow-up setup",
				Passed:      false,
				Message:     err.Error(),
			}}, nil
		}
	}
	if err := e.perform(ctx, *target); err != nil {
		return []model.VerificationResult{{
			Schema:      fu.Name,
			Expectation: "follow-up action " + target.String(),
			Passed:      false,
			Message:     err.Error(),
		}}, nil
	}
	_ = e.session.WaitSettle(ctx)

	fuObs, err := e.session.Observe(ctx)
	if err != nil {
		e.logger.Warn("follow-up observation failed", "schema", fu.Name, "error", err)
		fuObs = obs
	}
	post := e.capture(ctx)
	results := e.engine.Evaluate(ctx, fu, *target, pre, post, e.session, fuObs.Network)
	return results, fuObs
}

// reach navigates to the task's URL and replays its path. A failed replay
// step truncates the rest; exploration continues from wherever the partial
// replay landed, and fingerprint dedup sorts out what that is.
func (e *Explorer) reach(ctx context.Context, task model.Task) error {
	if err := e.session.Navigate(ctx, task.URL); err != nil {
		return err
	}
	for i, action := range task.Path {
		if err := e.perform(ctx, action); err != nil {
			if fatal(err) {
				return err
			}
			e.logger.Warn("replay step failed, path truncated",
				"url", task.URL, "step", i, "action", action.String(), "error", err)
			break
		}
		_ = e.session.WaitSettle(ctx)
	}
	return nil
}

// reset returns the session to the task's state for the next action. When
// even that fails the task ends early: the session's position is unknown.
func (e *Explorer) reset(ctx context.Context, task model.Task) error {
	if err := e.reach(ctx, task); err != nil {
		if fatal(err) {
			return err
		}
		e.logger.Warn("reset failed, ending task",
			"url", task.URL, "depth", task.Depth, "error", err)
		return errEndTask
	}
	return nil
}

// perform executes one interaction and counts it.
func (e *Explorer) perform(ctx context.Context, action model.Action) error {
	e.actionsExecuted++
	return e.session.Perform(ctx, action)
}

// capture takes a concurrent snapshot of every connected adapter. Nil when
// no adapters are configured, which fingerprinting treats as its own case.
func (e *Explorer) capture(ctx context.Context) map[string]model.AdapterSnapshot {
	if e.registry == nil || e.registry.Len() == 0 {
		return nil
	}
	return e.registry.CaptureAll(ctx)
}

// recordFailedAction keeps the attempted edge in the graph and raises an
// issue for it. The edge self-loops: the action did not provably move the
// application anywhere.
func (e *Explorer) recordFailedAction(state *model.AppState, action model.Action, viewport string, err error) {
	e.graph.AddTransition(model.Transition{
		From:     state.Fingerprint,
		Action:   action,
		To:       state.Fingerprint,
		Viewport: viewport,
		At:       time.Now().UTC(),
		Failed:   true,
		Error:    err.Error(),
	})

	issue := model.NewIssue("action-unreachable",
		fmt.Sprintf("%s could not be executed: %v", action.String(), err))
	issue.StateFingerprint = state.Fingerprint
	issue.URL = state.URL
	issue.Viewport = viewport
	issue.Action = action.String()
	if action.Locator != "" {
		issue.Locators = []string{action.Locator}
	}
	e.graph.AddIssue(state.Fingerprint, issue)
}

// screenshot captures the current page for a newly admitted state. Best
// effort only: a state without a screenshot is still a state.
func (e *Explorer) screenshot(ctx context.Context, state *model.AppState) {
	if e.screenshotDir == "" {
		return
	}
	png, err := e.session.Screenshot(ctx)
	if err != nil {
		e.logger.Debug("screenshot failed",
			"fingerprint", state.Fingerprint, "error", err)
		return
	}
	if err := os.MkdirAll(e.screenshotDir, 0750); err != nil {
		e.logger.Warn("screenshot directory", "dir", e.screenshotDir, "error", err)
		return
	}
	name := state.Fingerprint
	if len(name) > 12 {
		name = name[:12]
	}
	path := filepath.Join(e.screenshotDir, name+".png")
	if err := os.WriteFile(path, png, 0600); err != nil {
		e.logger.Warn("screenshot write failed", "path", path, "error", err)
	}
}

// fatal reports whether the error means the session is gone for good.
func fatal(err error) bool {
	return errors.Is(err, browser.ErrSessionClosed)
}
