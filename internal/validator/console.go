package validator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/browser"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Console turns the console and network activity captured during the last
// action into issues: script errors, failed requests, and error responses.
type Console struct{}

// NewConsole creates the console-and-network validator.
func NewConsole() *Console {
	return &Console{}
}

// Name implements Validator.
func (c *Console) Name() string { return "console" }

// Validate implements Validator. It works entirely from the observation's
// accumulated activity; nothing is probed.
func (c *Console) Validate(_ context.Context, _ browser.Session, obs *model.Observation, _ string) (*Result, error) {
	start := time.Now()
	res := &Result{Validator: c.Name()}

	for _, entry := range obs.Console {
		if entry.Level != model.ConsoleError {
			continue
		}
		issue := model.NewIssue("console-error", entry.Text)
		issue.Detail = entry.Source
		res.Issues = append(res.Issues, issue)
	}

	for _, ev := range obs.Network {
		switch {
		case ev.Failed:
			issue := model.NewIssue("network-error",
				fmt.Sprintf("%s %s failed: %s", ev.Method, ev.URL, ev.FailureReason))
			issue.Detail = ev.URL
			res.Issues = append(res.Issues, issue)

		case ev.Status >= http.StatusInternalServerError:
			issue := model.NewIssue("network-error",
				fmt.Sprintf("%s %s returned %d", ev.Method, ev.URL, ev.Status))
			issue.Detail = ev.URL
			res.Issues = append(res.Issues, issue)

		case ev.Status >= http.StatusBadRequest:
			issue := model.NewIssue("client-error",
				fmt.Sprintf("%s %s returned %d", ev.Method, ev.URL, ev.Status))
			issue.Detail = ev.URL
			res.Issues = append(res.Issues, issue)
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}
