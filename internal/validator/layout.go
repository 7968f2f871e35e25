package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/browser"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Layout flags rendering problems measurable from the observation:
// horizontal overflow at the current viewport, and interactive elements that
// exist in the DOM but have no rendered size.
type Layout struct{}

// NewLayout creates the layout validator.
func NewLayout() *Layout {
	return &Layout{}
}

// Name implements Validator.
func (l *Layout) Name() string { return "layout" }

// Validate implements Validator. The static driver reports no render
// metrics, so both checks are naturally inert under it.
func (l *Layout) Validate(_ context.Context, _ browser.Session, obs *model.Observation, viewport string) (*Result, error) {
	start := time.Now()
	res := &Result{Validator: l.Name()}

	if obs.ViewportWidth > 0 && obs.ScrollWidth > obs.ViewportWidth {
		res.Issues = append(res.Issues, model.NewIssue("layout-overflow",
			fmt.Sprintf("page is %dpx wide in a %dpx viewport (%s)",
				obs.ScrollWidth, obs.ViewportWidth, viewport)))
	}

	var locators []string
	for _, el := range obs.Elements {
		if !el.Visible && !el.Disabled && el.InputType != "hidden" {
			locators = append(locators, el.Selector)
		}
	}
	if len(locators) > 0 {
		issue := model.NewIssue("invisible-interactive",
			fmt.Sprintf("%d interactive element(s) have no rendered size", len(locators)))
		issue.Locators = locators
		res.Issues = append(res.Issues, issue)
	}

	res.Duration = time.Since(start)
	return res, nil
}
