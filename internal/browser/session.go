package browser

import (
	"context"
	"errors"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Session errors.
var (
	// ErrElementNotFound is returned when an action's locator matches no
	// element on the current page. A recoverable action failure: the
	// crawler records it on the transition and moves on.
	ErrElementNotFound = errors.New("element not found")

	// ErrSessionClosed is returned for calls on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrUnsupportedAction is returned when a session cannot perform the
	// action's type, e.g. hover on the static session.
	ErrUnsupportedAction = errors.New("unsupported action for this session")
)

// Timeouts bounds a session's suspension points. Every wait a session
// performs (navigation, element readiness, settle) is bounded by one of
// these; a hit timeout surfaces as an error on that one call, never as a
// hung crawl.
type Timeouts struct {
	// Navigation bounds a page load.
	Navigation time.Duration

	// Action bounds a single element interaction, including its
	// visibility and enabled waits.
	Action time.Duration

	// Settle bounds the post-action idle wait. Expiry means "treat the
	// page as settled", not failure.
	Settle time.Duration
}

// DefaultTimeouts returns conservative bounds suitable for local targets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation: 30 * time.Second,
		Action:     10 * time.Second,
		Settle:     5 * time.Second,
	}
}

// Session is one live browser context against the target application. The
// crawler owns exactly one session per run and drives it sequentially; a
// session is not safe for concurrent use.
//
// Design decision: Actions are performed through one Perform method taking
// the replayable Action value rather than per-type methods because:
//  1. Replay re-executes recorded Actions verbatim; a single entry point
//     keeps record and replay trivially symmetric
//  2. Setup steps, login steps, and discovered actions all flow through
//     the same dispatch, so behavior cannot drift between them
//  3. New action types extend the Action enum once instead of widening
//     this interface
type Session interface {
	// Navigate loads the URL and waits for the load to complete, bounded
	// by the navigation timeout.
	Navigate(ctx context.Context, url string) error

	// URL returns the current page URL.
	URL() string

	// SetViewport resizes the window.
	SetViewport(ctx context.Context, vp model.Viewport) error

	// Observe extracts the page's interactive surface in one pass,
	// including the console and network activity accumulated since the
	// previous drain.
	Observe(ctx context.Context) (*model.Observation, error)

	// Perform executes one action against the live page, waiting for the
	// target element to be visible and enabled first, bounded by the
	// action timeout.
	Perform(ctx context.Context, action model.Action) error

	// WaitSettle waits for in-flight network and rendering activity to go
	// idle, bounded by the settle timeout. Expiry is not an error.
	WaitSettle(ctx context.Context) error

	// Visible reports whether the first element matching the selector is
	// currently visible. A selector matching nothing is visible == false,
	// not an error.
	Visible(ctx context.Context, selector string) (bool, error)

	// Text returns the visible text of the first element matching the
	// selector.
	Text(ctx context.Context, selector string) (string, error)

	// Eval runs a script in the page and returns its JSON-encoded result.
	Eval(ctx context.Context, js string) (string, error)

	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// SetCookie injects a cookie for the given URL's origin.
	SetCookie(ctx context.Context, name, value, rawURL string) error

	// SetHeaders adds headers to every request the session issues.
	SetHeaders(ctx context.Context, headers map[string]string) error

	// DrainConsole returns and clears the console entries accumulated
	// since the last drain.
	DrainConsole() []model.ConsoleEntry

	// DrainNetwork returns and clears the network events accumulated
	// since the last drain.
	DrainNetwork() []model.NetworkEvent

	// Close releases the session and its browser resources.
	Close() error
}
