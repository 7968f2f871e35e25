package expect

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Verifier is the slice of the adapter contract the engine needs: a
// read-only check of one expectation against pre/post snapshots. The verify
// package's adapters implement it; tests supply fakes.
type Verifier interface {
	Verify(ctx context.Context, action model.Action, exp Expectation, pre, post model.AdapterSnapshot) (model.VerificationResult, error)
}

// VerifierLookup resolves an adapter name to its Verifier. Injected by the
// caller so the engine stays independent of adapter construction and
// connection lifecycle.
type VerifierLookup func(name string) (Verifier, bool)

// PageProbe is the slice of the browser session the engine needs for
// ui-kind expectations: current URL, element visibility, element text.
type PageProbe interface {
	URL() string
	Visible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
}

// Engine matches executed actions against configured schemas and evaluates
// the matched schema's expectations.
type Engine struct {
	schemas []*Schema
	lookup  VerifierLookup
}

// NewEngine creates an engine over the given schemas. The lookup may be nil
// when no adapters are configured; database/service expectations then fail
// with a configuration message rather than crashing.
func NewEngine(schemas []*Schema, lookup VerifierLookup) *Engine {
	return &Engine{schemas: schemas, lookup: lookup}
}

// Schemas returns the configured schemas in declaration order.
func (e *Engine) Schemas() []*Schema {
	return e.schemas
}

// Match returns the first schema whose matcher accepts the action on the
// given page, or nil. First-wins in declaration order is the documented
// contract: authors order schemas most-specific first.
func (e *Engine) Match(action model.Action, pageURL string) (*Schema, bool) {
	for _, s := range e.schemas {
		if s.Match.Matches(action, pageURL) {
			return s, true
		}
	}
	return nil, false
}

// Evaluate checks every expectation of a matched schema and returns one
// VerificationResult per expectation, in declaration order.
//
// Design decision: Expectations are independent and order-insensitive
// because:
//  1. Partial pass/fail must be preserved for reporting; a schema outcome
//     is the list of results, never a single boolean
//  2. One adapter being down must not hide what the page itself shows
//  3. Reordering expectations in a config file must never change results
func (e *Engine) Evaluate(ctx context.Context, schema *Schema, action model.Action, pre, post map[string]model.AdapterSnapshot, page PageProbe, network []model.NetworkEvent) []model.VerificationResult {
	results := make([]model.VerificationResult, 0, len(schema.Expectations))
	for _, exp := range schema.Expectations {
		var r model.VerificationResult
		switch exp.Kind {
		case ExpectDatabase, ExpectService:
			r = e.evaluateAdapter(ctx, schema, action, exp, pre, post)
		case ExpectUI:
			r = evaluateUI(ctx, exp, page)
		case ExpectAPI:
			r = evaluateAPI(exp, network)
		default:
			r = model.VerificationResult{
				Passed:  false,
				Message: fmt.Sprintf("unknown expectation kind %q", exp.Kind),
			}
		}
		r.Schema = schema.Name
		if r.Expectation == "" {
			r.Expectation = exp.Describe()
		}
		results = append(results, r)
	}
	return results
}

// evaluateAdapter delegates to the named adapter's verify. Adapter absence
// and adapter errors are failed results, not aborts: the run continues and
// the report shows what went wrong.
func (e *Engine) evaluateAdapter(ctx context.Context, schema *Schema, action model.Action, exp Expectation, pre, post map[string]model.AdapterSnapshot) model.VerificationResult {
	name := exp.Adapter
	fail := func(msg string) model.VerificationResult {
		return model.VerificationResult{
			Expectation: exp.Describe(),
			Passed:      false,
			Message:     msg,
		}
	}

	if e.lookup == nil {
		return fail(fmt.Sprintf("adapter %q not configured", name))
	}
	v, ok := e.lookup(name)
	if !ok {
		return fail(fmt.Sprintf("adapter %q not configured", name))
	}

	r, err := v.Verify(ctx, action, exp, pre[name], post[name])
	if err != nil {
		return fail(fmt.Sprintf("adapter %q verify failed: %v", name, err))
	}
	if r.Expectation == "" {
		r.Expectation = exp.Describe()
	}
	return r
}

// evaluateUI checks the live page. Probe errors become failed results.
func evaluateUI(ctx context.Context, exp Expectation, page PageProbe) model.VerificationResult {
	r := model.VerificationResult{Expectation: exp.Describe()}
	fail := func(msg string) model.VerificationResult {
		r.Passed = false
		r.Message = msg
		return r
	}
	if page == nil {
		return fail("no live page available for ui expectation")
	}

	switch exp.Condition {
	case CondVisible, CondHidden:
		visible, err := page.Visible(ctx, exp.Selector)
		if err != nil {
			return fail(fmt.Sprintf("probe %q: %v", exp.Selector, err))
		}
		want := exp.Condition == CondVisible
		actual := "hidden"
		if visible {
			actual = "visible"
		}
		r.Expected = exp.Condition
		r.Actual = actual
		if visible != want {
			return fail(fmt.Sprintf("expected %s to be %s, found it %s", exp.Selector, exp.Condition, actual))
		}
		r.Passed = true
		return r

	case CondText:
		text, err := page.Text(ctx, exp.Selector)
		if err != nil {
			return fail(fmt.Sprintf("probe %q: %v", exp.Selector, err))
		}
		re, err := regexp.Compile(exp.Text)
		if err != nil {
			return fail(fmt.Sprintf("invalid text pattern %q: %v", exp.Text, err))
		}
		r.Expected = fmt.Sprintf("text matching %q", exp.Text)
		r.Actual = text
		if !re.MatchString(text) {
			return fail(fmt.Sprintf("text of %s is %q, expected match for %q", exp.Selector, text, exp.Text))
		}
		r.Passed = true
		return r

	case CondURL:
		re, err := regexp.Compile(exp.URL)
		if err != nil {
			return fail(fmt.Sprintf("invalid url pattern %q: %v", exp.URL, err))
		}
		current := page.URL()
		r.Expected = fmt.Sprintf("url matching %q", exp.URL)
		r.Actual = current
		if !re.MatchString(current) {
			return fail(fmt.Sprintf("page url is %q, expected match for %q", current, exp.URL))
		}
		r.Passed = true
		return r

	default:
		return fail(fmt.Sprintf("unknown ui condition %q", exp.Condition))
	}
}

// evaluateAPI scans the network log for a request matching the expectation.
// Passes when at least one matching request carries the expected status.
func evaluateAPI(exp Expectation, network []model.NetworkEvent) model.VerificationResult {
	r := model.VerificationResult{Expectation: exp.Describe()}

	re, err := regexp.Compile(exp.URL)
	if err != nil {
		r.Message = fmt.Sprintf("invalid url pattern %q: %v", exp.URL, err)
		return r
	}

	var statuses []string
	for _, ev := range network {
		if exp.Method != "" && !strings.EqualFold(ev.Method, exp.Method) {
			continue
		}
		if !re.MatchString(ev.URL) {
			continue
		}
		if ev.Failed {
			statuses = append(statuses, "failed: "+ev.FailureReason)
			continue
		}
		statuses = append(statuses, strconv.Itoa(ev.Status))
		if statusMatches(exp.Status, ev.Status) {
			r.Passed = true
			r.Expected = exp.Status
			r.Actual = strconv.Itoa(ev.Status)
			return r
		}
	}

	r.Expected = exp.Status
	if len(statuses) == 0 {
		r.Message = fmt.Sprintf("no %s request matching %q was observed", orAny(exp.Method), exp.URL)
		r.Actual = "no matching request"
		return r
	}
	r.Actual = strings.Join(statuses, ", ")
	r.Message = fmt.Sprintf("request matching %q returned %s, expected %s", exp.URL, r.Actual, exp.Status)
	return r
}

// statusMatches compares a status code against an exact code ("201") or a
// class pattern ("2xx").
func statusMatches(want string, got int) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	if strings.HasSuffix(want, "xx") && len(want) == 3 {
		class, err := strconv.Atoi(want[:1])
		if err != nil {
			return false
		}
		return got/100 == class
	}
	exact, err := strconv.Atoi(want)
	if err != nil {
		return false
	}
	return got == exact
}

func orAny(method string) string {
	if method == "" {
		return "any"
	}
	return method
}
