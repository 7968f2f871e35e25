package validator

import (
	"context"
	"log/slog"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/browser"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Result is one validator's outcome for one observed page.
type Result struct {
	// Validator is the name of the check that ran.
	Validator string

	// Issues holds the defects found; empty when the page is clean.
	Issues []model.Issue

	// Duration is how long the check took.
	Duration time.Duration
}

// Validator inspects one observed page.
//
// Design decision: Validate receives the observation alongside the session
// because:
//  1. Most checks work from the snapshot alone, keeping them pure and
//     trivially testable
//  2. Observing once and sharing avoids re-extracting the page per check
//  3. The session stays available for the few checks that must probe live
type Validator interface {
	// Name identifies the validator in issues and logs.
	Name() string

	// Validate inspects the page. A non-nil error means the check could not
	// complete; any issues returned alongside it are still valid findings.
	Validate(ctx context.Context, session browser.Session, obs *model.Observation, viewport string) (*Result, error)
}

// RunAll executes every validator against one observed page and merges their
// findings, stamping each issue with its origin. Validator errors are logged
// and swallowed.
func RunAll(ctx context.Context, validators []Validator, session browser.Session, obs *model.Observation, viewport string, logger *slog.Logger) []model.Issue {
	if logger == nil {
		logger = slog.Default()
	}

	var issues []model.Issue
	for _, v := range validators {
		res, err := v.Validate(ctx, session, obs, viewport)
		if err != nil {
			logger.Warn("validator failed",
				"validator", v.Name(),
				"url", obs.URL,
				"error", err)
		}
		if res == nil {
			continue
		}
		for _, issue := range res.Issues {
			issue.Validator = v.Name()
			issue.Viewport = viewport
			if issue.URL == "" {
				issue.URL = obs.URL
			}
			issues = append(issues, issue)
		}
	}
	return issues
}

// Defaults returns the standard validator set.
func Defaults(probeTimeout time.Duration, probeConcurrency int) []Validator {
	return []Validator{
		NewAccessibility(),
		NewLinkChecker(probeTimeout, probeConcurrency),
		NewConsole(),
		NewLayout(),
	}
}
