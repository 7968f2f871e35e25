package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// RodConfig configures a Chrome-backed session.
type RodConfig struct {
	// Headless runs Chrome without a window. Default in production;
	// disable to watch exploration live.
	Headless bool

	// RemoteURL is the WebSocket debugger URL of an already running
	// Chrome. Empty launches a local one.
	RemoteURL string

	// Timeouts bound the session's waits. Zero values get defaults.
	Timeouts Timeouts

	Logger *slog.Logger
}

// RodSession drives a real Chrome page through go-rod. One session wraps
// one page; the page is created with stealth applied so bot-detection
// middleware in the target application does not alter the surface being
// explored.
type RodSession struct {
	browser  *rod.Browser
	lnch     *launcher.Launcher
	page     *rod.Page
	timeouts Timeouts
	logger   *slog.Logger

	mu      sync.Mutex
	console []model.ConsoleEntry
	network []model.NetworkEvent
	// requests maps in-flight request IDs to their method and URL so the
	// response event, which carries only the ID, can be completed.
	requests map[proto.NetworkRequestID]model.NetworkEvent
	closed   bool
}

// NewRodSession launches (or connects to) Chrome and opens one stealth
// page with console and network event accumulation enabled.
func NewRodSession(cfg RodConfig) (*RodSession, error) {
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = DefaultTimeouts()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var (
		wsURL string
		lnch  *launcher.Launcher
	)
	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		cfg.Logger.Debug("connecting to remote chrome", "url", wsURL)
	} else {
		lnch = launcher.New().
			Headless(cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		wsURL = u
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("create page: %w", err)
	}

	s := &RodSession{
		browser:  b,
		lnch:     lnch,
		page:     page,
		timeouts: cfg.Timeouts,
		logger:   cfg.Logger,
		requests: make(map[proto.NetworkRequestID]model.NetworkEvent),
	}

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("enable network events: %w", err)
	}
	go s.subscribe()

	return s, nil
}

// subscribe accumulates console and network events for the page's
// lifetime. EachEvent blocks until the page closes.
func (s *RodSession) subscribe() {
	s.page.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			s.addConsole(consoleEntryFrom(e))
		},
		func(e *proto.NetworkRequestWillBeSent) {
			s.mu.Lock()
			s.requests[e.RequestID] = model.NetworkEvent{
				Method: e.Request.Method,
				URL:    e.Request.URL,
			}
			s.mu.Unlock()
		},
		func(e *proto.NetworkResponseReceived) {
			s.mu.Lock()
			ev, ok := s.requests[e.RequestID]
			delete(s.requests, e.RequestID)
			s.mu.Unlock()
			if !ok {
				ev = model.NetworkEvent{URL: e.Response.URL}
			}
			ev.Status = e.Response.Status
			s.addNetwork(ev)
		},
		func(e *proto.NetworkLoadingFailed) {
			s.mu.Lock()
			ev, ok := s.requests[e.RequestID]
			delete(s.requests, e.RequestID)
			s.mu.Unlock()
			if !ok || e.Canceled {
				return
			}
			ev.Failed = true
			ev.FailureReason = e.ErrorText
			s.addNetwork(ev)
		},
	)()
}

func (s *RodSession) addConsole(entry model.ConsoleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.console) < model.MaxConsoleEntries {
		s.console = append(s.console, entry)
	}
}

func (s *RodSession) addNetwork(ev model.NetworkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.network) < model.MaxNetworkEvents {
		s.network = append(s.network, ev)
	}
}

// consoleEntryFrom flattens a console call into one entry.
func consoleEntryFrom(e *proto.RuntimeConsoleAPICalled) model.ConsoleEntry {
	level := model.ConsoleLog
	switch e.Type {
	case proto.RuntimeConsoleAPICalledTypeError, proto.RuntimeConsoleAPICalledTypeAssert:
		level = model.ConsoleError
	case proto.RuntimeConsoleAPICalledTypeWarning:
		level = model.ConsoleWarning
	case proto.RuntimeConsoleAPICalledTypeInfo:
		level = model.ConsoleInfo
	}

	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		if arg.Value.Val() != nil {
			parts = append(parts, arg.Value.String())
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}

	entry := model.ConsoleEntry{
		Level: level,
		Text:  model.TruncateText(strings.Join(parts, " ")),
	}
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		entry.Source = e.StackTrace.CallFrames[0].URL
	}
	return entry
}

// Navigate loads the URL and waits for the load event.
func (s *RodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.timeouts.Navigation)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// URL returns the current page URL.
func (s *RodSession) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// SetViewport resizes the emulated window.
func (s *RodSession) SetViewport(ctx context.Context, vp model.Viewport) error {
	return s.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
		Mobile:            vp.Width > 0 && vp.Width < 800,
	})
}

// observeResult mirrors the object the extraction script returns.
type observeResult struct {
	URL           string              `json:"url"`
	Title         string              `json:"title"`
	Lang          string              `json:"lang"`
	Elements      []model.PageElement `json:"elements"`
	Links         []model.Link        `json:"links"`
	Forms         []model.Form        `json:"forms"`
	Headings      []int               `json:"headings"`
	DuplicateIDs  []string            `json:"duplicateIds"`
	ScrollWidth   int                 `json:"scrollWidth"`
	ViewportWidth int                 `json:"viewportWidth"`
	HTML          string              `json:"html"`
	Host          string              `json:"host"`
}

// Observe extracts the page's interactive surface in a single in-page
// script pass, then attaches the drained console and network activity.
//
// Design decision: Extraction runs as one Eval rather than many CDP
// element queries because:
//  1. One round trip observes the page at a single instant; element-by-
//     element queries race against page mutations
//  2. Selector generation needs document context (sibling positions),
//     which only the page itself has cheaply
//  3. It is an order of magnitude faster on element-heavy pages
func (s *RodSession) Observe(ctx context.Context) (*model.Observation, error) {
	res, err := s.page.Context(ctx).Timeout(s.timeouts.Action).Eval(observeScript)
	if err != nil {
		return nil, fmt.Errorf("observe page: %w", err)
	}

	var raw observeResult
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &raw); err != nil {
		return nil, fmt.Errorf("decode observation: %w", err)
	}

	obs := &model.Observation{
		URL:           stripURLFragment(raw.URL),
		Title:         raw.Title,
		Lang:          raw.Lang,
		Elements:      raw.Elements,
		Forms:         raw.Forms,
		Headings:      raw.Headings,
		DuplicateIDs:  raw.DuplicateIDs,
		ScrollWidth:   raw.ScrollWidth,
		ViewportWidth: raw.ViewportWidth,
		HTML:          model.TruncateHTML(raw.HTML),
		Console:       s.DrainConsole(),
		Network:       s.DrainNetwork(),
	}
	for i := range obs.Elements {
		obs.Elements[i].Text = model.TruncateText(obs.Elements[i].Text)
	}
	for _, l := range raw.Links {
		l.Text = model.TruncateText(l.Text)
		obs.Links = append(obs.Links, l)
	}
	return obs, nil
}

// Perform executes one action, waiting for its element to be interactable.
func (s *RodSession) Perform(ctx context.Context, action model.Action) error {
	page := s.page.Context(ctx).Timeout(s.timeouts.Action)

	if action.Type == model.ActionNavigate {
		return s.Navigate(ctx, action.URL)
	}

	el, err := page.Element(action.Locator)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrElementNotFound, action.Locator)
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll to %s: %w", action.Locator, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait visible %s: %w", action.Locator, err)
	}

	switch action.Type {
	case model.ActionClick, model.ActionCheck:
		if err := el.WaitEnabled(); err != nil {
			return fmt.Errorf("wait enabled %s: %w", action.Locator, err)
		}
		return el.Click(proto.InputMouseButtonLeft, 1)

	case model.ActionFill:
		if err := el.SelectAllText(); err != nil {
			return fmt.Errorf("clear %s: %w", action.Locator, err)
		}
		return el.Input(action.Value)

	case model.ActionSelect:
		return el.Select([]string{action.Value}, true, rod.SelectorTypeText)

	case model.ActionHover:
		return el.Hover()

	case model.ActionKeypress:
		if key, ok := namedKeys[strings.ToLower(action.Value)]; ok {
			return el.Type(key)
		}
		return el.Input(action.Value)

	case model.ActionSubmit:
		// requestSubmit triggers the form's validation and submit event
		// listeners; bare submit() bypasses both.
		_, err := el.Eval(`() => this.requestSubmit ? this.requestSubmit() : this.submit()`)
		return err

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, action.Type)
	}
}

// namedKeys maps keypress action values to their key codes.
var namedKeys = map[string]input.Key{
	"enter":  input.Enter,
	"escape": input.Escape,
	"tab":    input.Tab,
}

// WaitSettle waits for the page to go idle. Expiry of the settle timeout
// is success by definition: a page that polls forever still settles.
func (s *RodSession) WaitSettle(ctx context.Context) error {
	_ = s.page.Context(ctx).WaitIdle(s.timeouts.Settle)
	return nil
}

// Visible reports whether the first match of the selector is visible.
func (s *RodSession) Visible(ctx context.Context, selector string) (bool, error) {
	els, err := s.page.Context(ctx).Timeout(s.timeouts.Action).Elements(selector)
	if err != nil || len(els) == 0 {
		return false, nil
	}
	visible, err := els.First().Visible()
	if err != nil {
		return false, err
	}
	return visible, nil
}

// Text returns the visible text of the first match of the selector.
func (s *RodSession) Text(ctx context.Context, selector string) (string, error) {
	el, err := s.page.Context(ctx).Timeout(s.timeouts.Action).Element(selector)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return el.Text()
}

// Eval runs a script in the page and returns its JSON-encoded result.
func (s *RodSession) Eval(ctx context.Context, js string) (string, error) {
	res, err := s.page.Context(ctx).Timeout(s.timeouts.Action).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.JSON("", ""), nil
}

// Screenshot captures the full page as PNG bytes.
func (s *RodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(true, nil)
}

// SetCookie injects a cookie for the given URL's origin.
func (s *RodSession) SetCookie(ctx context.Context, name, value, rawURL string) error {
	return s.page.Context(ctx).SetCookies([]*proto.NetworkCookieParam{
		{Name: name, Value: value, URL: rawURL},
	})
}

// SetHeaders adds headers to every request the session issues.
func (s *RodSession) SetHeaders(_ context.Context, headers map[string]string) error {
	pairs := make([]string, 0, len(headers)*2)
	for k, v := range headers {
		pairs = append(pairs, k, v)
	}
	_, err := s.page.SetExtraHeaders(pairs)
	return err
}

// DrainConsole returns and clears the accumulated console entries.
func (s *RodSession) DrainConsole() []model.ConsoleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.console
	s.console = nil
	return out
}

// DrainNetwork returns and clears the accumulated network events.
func (s *RodSession) DrainNetwork() []model.NetworkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.network
	s.network = nil
	return out
}

// Close releases the page, the browser connection, and the launched Chrome.
func (s *RodSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var firstErr error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			firstErr = err
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
	return firstErr
}

// stripURLFragment drops the #fragment from a URL string.
func stripURLFragment(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}

// observeScript is the in-page extraction pass. It mirrors observeResult;
// selector generation prefers ids, then name attributes, then a positional
// path, so the same element resolves to the same selector across reloads.
const observeScript = `() => {
	const cssEscape = (s) => (window.CSS && CSS.escape) ? CSS.escape(s) : s.replace(/([^a-zA-Z0-9_-])/g, '\\$1');

	const selectorFor = (el) => {
		if (el.id) return '#' + cssEscape(el.id);
		const tag = el.tagName.toLowerCase();
		if (el.name && document.getElementsByName(el.name).length === 1) {
			return tag + '[name="' + cssEscape(el.name) + '"]';
		}
		// Positional path from the nearest id-anchored ancestor.
		const parts = [];
		let node = el;
		while (node && node.nodeType === 1 && node !== document.documentElement) {
			const t = node.tagName.toLowerCase();
			if (node.id) { parts.unshift('#' + cssEscape(node.id)); break; }
			let idx = 1, sib = node;
			while ((sib = sib.previousElementSibling)) {
				if (sib.tagName === node.tagName) idx++;
			}
			parts.unshift(t + ':nth-of-type(' + idx + ')');
			node = node.parentElement;
		}
		return parts.join(' > ');
	};

	const isVisible = (el) => {
		const r = el.getBoundingClientRect();
		if (r.width <= 0 || r.height <= 0) return false;
		const st = getComputedStyle(el);
		return st.display !== 'none' && st.visibility !== 'hidden';
	};

	const elements = [];
	const push = (el, kind) => {
		elements.push({
			kind: kind,
			selector: selectorFor(el),
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.value || '').trim().slice(0, 200),
			name: el.name || '',
			id: el.id || '',
			input_type: (el.type || ''),
			href: el.getAttribute ? (el.getAttribute('href') || '') : '',
			aria_label: el.getAttribute('aria-label') || '',
			disabled: !!el.disabled,
			visible: isVisible(el),
			options: el.tagName === 'SELECT' ? Array.from(el.options).map(o => o.value) : undefined,
		});
	};

	document.querySelectorAll('button, input[type=button], input[type=submit], [role=button]').forEach(el => push(el, 'button'));
	document.querySelectorAll('a[href]').forEach(el => push(el, 'link'));
	document.querySelectorAll('input:not([type=button]):not([type=submit]):not([type=checkbox]):not([type=radio]), textarea').forEach(el => push(el, 'input'));
	document.querySelectorAll('select').forEach(el => push(el, 'select'));
	document.querySelectorAll('input[type=checkbox], input[type=radio]').forEach(el => push(el, 'checkbox'));

	const links = Array.from(document.querySelectorAll('a[href]')).map(a => ({
		href: a.href,
		text: (a.innerText || '').trim().slice(0, 200),
		internal: a.host === location.host,
	}));

	const forms = Array.from(document.querySelectorAll('form')).map(f => ({
		selector: selectorFor(f),
		method: (f.method || 'get').toLowerCase(),
		action: f.getAttribute('action') || '',
		fields: Array.from(f.querySelectorAll('input, select, textarea')).map(el => ({
			selector: selectorFor(el),
			name: el.name || '',
			input_type: el.type || '',
			required: !!el.required,
		})),
	}));

	const headings = Array.from(document.querySelectorAll('h1,h2,h3,h4,h5,h6'))
		.map(h => parseInt(h.tagName.slice(1), 10));

	const seen = {}, dups = [];
	document.querySelectorAll('[id]').forEach(el => {
		if (seen[el.id] === 1) dups.push(el.id);
		seen[el.id] = (seen[el.id] || 0) + 1;
	});

	return {
		url: location.href,
		host: location.host,
		title: document.title,
		lang: document.documentElement.getAttribute('lang') || '',
		elements: elements,
		links: links,
		forms: forms,
		headings: headings,
		duplicateIds: dups,
		scrollWidth: document.documentElement.scrollWidth,
		viewportWidth: window.innerWidth,
		html: document.documentElement.outerHTML,
	};
}`
