package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// maxStaticBody bounds how much of a response body the static driver reads.
const maxStaticBody = 4 << 20

// StaticConfig configures an HTTP-backed session.
type StaticConfig struct {
	Timeouts Timeouts
	Logger   *slog.Logger

	// Client overrides the HTTP client, used by tests. A nil client gets a
	// cookie-jar client so login sessions survive across navigations.
	Client *http.Client
}

// StaticSession explores server-rendered applications over plain HTTP: it
// fetches pages, parses them, and synthesizes form submissions. JavaScript
// never runs, so client-rendered applications need the Chrome driver instead.
//
// Design decision: Interaction state (filled values, checked boxes) lives in
// the session rather than in a DOM because:
//  1. Server-rendered pages only consume that state at submit time
//  2. A navigate naturally discards it, matching what a browser does
//  3. It keeps the parsed page immutable and shareable with observations
type StaticSession struct {
	client   *http.Client
	timeouts Timeouts
	logger   *slog.Logger

	mu       sync.Mutex
	current  *url.URL
	page     *parsedPage
	viewport model.Viewport
	headers  map[string]string
	fills    map[string]string
	checks   map[string]bool
	selects  map[string]string
	network  []model.NetworkEvent
	closed   bool
}

// NewStaticSession creates a session with a fresh cookie jar.
func NewStaticSession(cfg StaticConfig) (*StaticSession, error) {
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = DefaultTimeouts()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := cfg.Client
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		client = &http.Client{Jar: jar}
	}

	return &StaticSession{
		client:   client,
		timeouts: cfg.Timeouts,
		logger:   cfg.Logger,
		headers:  make(map[string]string),
		fills:    make(map[string]string),
		checks:   make(map[string]bool),
		selects:  make(map[string]string),
	}, nil
}

// Navigate fetches and parses the URL, discarding any pending form state.
func (s *StaticSession) Navigate(ctx context.Context, rawURL string) error {
	return s.load(ctx, http.MethodGet, rawURL, "", "")
}

// load performs one request and replaces the current page with the result.
func (s *StaticSession) load(ctx context.Context, method, rawURL, contentType, body string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	headers := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		headers[k] = v
	}
	vp := s.viewport
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Navigation)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("build request %s: %w", rawURL, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordNetwork(model.NetworkEvent{
			Method: method, URL: rawURL, Failed: true, FailureReason: err.Error(),
		})
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	s.recordNetwork(model.NetworkEvent{
		Method: method, URL: rawURL, Status: resp.StatusCode,
	})

	// Redirects were followed; the final URL is what the page is.
	final := resp.Request.URL
	page, err := parsePage(final, io.LimitReader(resp.Body, maxStaticBody), vp.Width)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = final
	s.page = page
	s.fills = make(map[string]string)
	s.checks = make(map[string]bool)
	s.selects = make(map[string]string)
	s.mu.Unlock()
	return nil
}

// URL returns the current page URL, empty before the first navigation.
func (s *StaticSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.String()
}

// SetViewport records the viewport; it only affects the width reported in
// observations, since nothing is rendered.
func (s *StaticSession) SetViewport(_ context.Context, vp model.Viewport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = vp
	return nil
}

// Observe returns the current page's observation with network activity
// attached. Console is always empty: no scripts run.
func (s *StaticSession) Observe(_ context.Context) (*model.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, fmt.Errorf("observe: no page loaded")
	}

	obs := *s.page.obs
	obs.ViewportWidth = s.viewport.Width
	obs.Network = s.network
	s.network = nil
	return &obs, nil
}

// Perform executes one action against the parsed page. Clicking a link
// navigates; clicking a submit button submits its form; fills, checks, and
// selects accumulate until a submit consumes them.
func (s *StaticSession) Perform(ctx context.Context, action model.Action) error {
	if action.Type == model.ActionNavigate {
		return s.Navigate(ctx, action.URL)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.page == nil {
		s.mu.Unlock()
		return fmt.Errorf("perform: no page loaded")
	}
	el, ok := s.page.index[action.Locator]
	if !ok {
		if _, isForm := s.page.forms[action.Locator]; !isForm {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrElementNotFound, action.Locator)
		}
	}
	s.mu.Unlock()

	switch action.Type {
	case model.ActionClick:
		switch {
		case el.kind == model.ElementLink && el.href != "":
			return s.Navigate(ctx, el.href)
		case el.kind == model.ElementButton && el.formSelector != "" && el.inputType != "button":
			return s.submitForm(ctx, el.formSelector, el)
		default:
			// A button with no form has only script behavior, which this
			// driver cannot run.
			return nil
		}

	case model.ActionFill:
		s.mu.Lock()
		s.fills[action.Locator] = action.Value
		s.mu.Unlock()
		return nil

	case model.ActionSelect:
		s.mu.Lock()
		s.selects[action.Locator] = action.Value
		s.mu.Unlock()
		return nil

	case model.ActionCheck:
		s.mu.Lock()
		s.checks[action.Locator] = !s.checks[action.Locator]
		s.mu.Unlock()
		return nil

	case model.ActionSubmit:
		return s.submitForm(ctx, action.Locator, staticElement{})

	case model.ActionKeypress:
		// Enter in a form field submits the form, as a browser would.
		if strings.EqualFold(action.Value, "enter") && el.formSelector != "" {
			return s.submitForm(ctx, el.formSelector, staticElement{})
		}
		return nil

	case model.ActionHover:
		// Hover has no server-visible effect without scripts.
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, action.Type)
	}
}

// submitForm synthesizes the form submission a browser would send: default
// values overlaid with the session's fills, checks, and selections. button
// names the submit button clicked, so its name/value pair is included.
func (s *StaticSession) submitForm(ctx context.Context, formSelector string, button staticElement) error {
	s.mu.Lock()
	form, ok := s.page.forms[formSelector]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrElementNotFound, formSelector)
	}

	values := url.Values{}
	for _, f := range form.fields {
		switch f.inputType {
		case "checkbox", "radio":
			if s.checks[f.selector] {
				v := f.value
				if v == "" {
					v = "on"
				}
				values.Set(f.name, v)
			}
		case htmlElementSelect:
			v, picked := s.selects[f.selector]
			if !picked && len(f.options) > 0 {
				v = f.options[0]
			}
			if f.name != "" && v != "" {
				values.Set(f.name, v)
			}
		case "submit", "button", "image":
			// Only the clicked button participates.
		default:
			v := f.value
			if filled, ok := s.fills[f.selector]; ok {
				v = filled
			}
			if f.name != "" {
				values.Set(f.name, v)
			}
		}
	}
	if button.name != "" {
		values.Set(button.name, button.value)
	}
	method := form.method
	action := form.action
	s.mu.Unlock()

	if strings.EqualFold(method, "post") {
		return s.load(ctx, http.MethodPost, action, "application/x-www-form-urlencoded", values.Encode())
	}

	u, err := url.Parse(action)
	if err != nil {
		return fmt.Errorf("form action %s: %w", action, err)
	}
	u.RawQuery = values.Encode()
	return s.load(ctx, http.MethodGet, u.String(), "", "")
}

// WaitSettle is a no-op: a static page is settled the moment it is parsed.
func (s *StaticSession) WaitSettle(context.Context) error {
	return nil
}

// Visible reports whether the selector matched an element on the current
// page. Without rendering, presence is the best visibility proxy available.
func (s *StaticSession) Visible(_ context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return false, nil
	}
	_, ok := s.page.index[selector]
	return ok, nil
}

// Text returns the element's text content.
func (s *StaticSession) Text(_ context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	el, ok := s.page.index[selector]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return el.text, nil
}

// Eval cannot run scripts in a static page.
func (s *StaticSession) Eval(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: eval", ErrUnsupportedAction)
}

// Screenshot cannot render a static page.
func (s *StaticSession) Screenshot(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("%w: screenshot", ErrUnsupportedAction)
}

// SetCookie stores a cookie in the session's jar for the URL's origin.
func (s *StaticSession) SetCookie(_ context.Context, name, value, rawURL string) error {
	if s.client.Jar == nil {
		return fmt.Errorf("set cookie: session has no cookie jar")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("set cookie: %w", err)
	}
	s.client.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
	return nil
}

// SetHeaders adds headers to every subsequent request.
func (s *StaticSession) SetHeaders(_ context.Context, headers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range headers {
		s.headers[k] = v
	}
	return nil
}

// DrainConsole always returns nil: no scripts, no console.
func (s *StaticSession) DrainConsole() []model.ConsoleEntry {
	return nil
}

// DrainNetwork returns and clears the accumulated request records.
func (s *StaticSession) DrainNetwork() []model.NetworkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.network
	s.network = nil
	return out
}

func (s *StaticSession) recordNetwork(ev model.NetworkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.network) < model.MaxNetworkEvents {
		s.network = append(s.network, ev)
	}
}

// Close marks the session closed; there is no process to tear down.
func (s *StaticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// guarantee both drivers satisfy the interface
var (
	_ Session = (*StaticSession)(nil)
	_ Session = (*RodSession)(nil)
)
