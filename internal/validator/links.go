package validator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rob-kingsbury/ui-explorer/internal/browser"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// LinkChecker probes the internal links of a page out of band and reports
// dead or unresponsive targets. External links are never probed: their
// availability is not the target application's defect.
type LinkChecker struct {
	client      *http.Client
	timeout     time.Duration
	concurrency int
}

// NewLinkChecker creates a link validator with the given per-probe timeout
// and worker-pool size.
func NewLinkChecker(timeout time.Duration, concurrency int) *LinkChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &LinkChecker{
		client:      &http.Client{},
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// WithClient overrides the probe client, used by tests.
func (l *LinkChecker) WithClient(c *http.Client) *LinkChecker {
	l.client = c
	return l
}

// Name implements Validator.
func (l *LinkChecker) Name() string { return "links" }

// Validate probes every unique internal link through a bounded worker pool
// and merges the findings after all probes drain.
//
// Design decision: Probes run through errgroup.SetLimit rather than one
// goroutine per link because:
//  1. A page with hundreds of links must not open hundreds of connections
//  2. SetLimit gives backpressure without hand-rolled semaphores
//  3. The group's context cancels outstanding probes if the run is stopped
func (l *LinkChecker) Validate(ctx context.Context, _ browser.Session, obs *model.Observation, _ string) (*Result, error) {
	start := time.Now()
	res := &Result{Validator: l.Name()}

	seen := make(map[string]bool)
	var targets []model.Link
	for _, link := range obs.Links {
		if !link.Internal || seen[link.Href] {
			continue
		}
		seen[link.Href] = true
		targets = append(targets, link)
	}
	if len(targets) == 0 {
		res.Duration = time.Since(start)
		return res, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for _, link := range targets {
		g.Go(func() error {
			issue, ok := l.probe(gctx, link)
			if ok {
				mu.Lock()
				res.Issues = append(res.Issues, issue)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // probes never return errors; findings are issues

	res.Duration = time.Since(start)
	return res, nil
}

// probe fetches one link target and classifies the outcome. A healthy
// response returns ok=false: no issue.
func (l *LinkChecker) probe(ctx context.Context, link model.Link) (model.Issue, bool) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.Href, nil)
	if err != nil {
		return model.Issue{}, false
	}

	resp, err := l.client.Do(req)
	if err != nil {
		// A probe cut short by run shutdown says nothing about the link.
		if errors.Is(err, context.Canceled) {
			return model.Issue{}, false
		}
		// A deadline hit means the target is slow; every other transport
		// failure (connection refused, DNS) means it is unreachable.
		var issue model.Issue
		if errors.Is(err, context.DeadlineExceeded) {
			issue = model.NewIssue("link-timeout",
				fmt.Sprintf("link %q did not respond within %s", linkLabel(link), l.timeout))
		} else {
			issue = model.NewIssue("link-unreachable",
				fmt.Sprintf("link %q could not be fetched", linkLabel(link)))
		}
		issue.Detail = link.Href
		return issue, true
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		issue := model.NewIssue("broken-link-404",
			fmt.Sprintf("link %q returns %d", linkLabel(link), resp.StatusCode))
		issue.Detail = link.Href
		return issue, true
	}
	return model.Issue{}, false
}

// linkLabel names a link by its text, falling back to the href.
func linkLabel(link model.Link) string {
	if link.Text != "" {
		return link.Text
	}
	return link.Href
}
