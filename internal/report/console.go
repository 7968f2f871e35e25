package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// ConsoleWriter outputs human-readable text with severity-colored findings.
// Color is enabled automatically when writing to a terminal and disabled
// for pipes and files, so redirected output stays clean.
type ConsoleWriter struct {
	baseWriter

	// colored forces color on or off; nil auto-detects from the output.
	colored *bool

	// verbose adds per-state detail below the summary.
	verbose bool
}

// ConsoleWriterOption configures a ConsoleWriter.
type ConsoleWriterOption func(*ConsoleWriter)

// WithColor forces colored output on or off, overriding tty detection.
func WithColor(enabled bool) ConsoleWriterOption {
	return func(w *ConsoleWriter) {
		w.colored = &enabled
	}
}

// WithVerbose enables per-state detail in the output.
func WithVerbose(verbose bool) ConsoleWriterOption {
	return func(w *ConsoleWriter) {
		w.verbose = verbose
	}
}

// NewConsoleWriter creates a ConsoleWriter that outputs to the given writer.
func NewConsoleWriter(output io.Writer, opts ...ConsoleWriterOption) *ConsoleWriter {
	w := &ConsoleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// useColor decides whether to emit ANSI sequences.
func (w *ConsoleWriter) useColor() bool {
	if w.colored != nil {
		return *w.colored
	}
	f, ok := w.output.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// severityPainter returns a sprint function for a severity level.
func severityPainter(sev model.Severity, colored bool) func(a ...interface{}) string {
	if !colored {
		return fmt.Sprint
	}
	switch sev {
	case model.SeverityCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case model.SeveritySerious:
		return color.New(color.FgRed).SprintFunc()
	case model.SeverityModerate:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgCyan).SprintFunc()
	}
}

// Write renders the run as terminal text.
func (w *ConsoleWriter) Write(result *model.RunResult) (int, error) {
	var sb strings.Builder
	colored := w.useColor()
	summary := result.Summarize()

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       UI EXPLORER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Target:        %s\n", result.Target)
	fmt.Fprintf(&sb, "Run:           %s\n", result.RunID)
	fmt.Fprintf(&sb, "Started:       %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Duration:      %s\n", result.Duration().Round(10*time.Millisecond))
	switch {
	case result.Error != "":
		fmt.Fprintf(&sb, "Status:        ABORTED - %s\n", result.Error)
	case result.HitMaxStates || result.HitMaxDepth:
		sb.WriteString("Status:        Complete (caps reached, graph is a lower bound)\n")
	default:
		sb.WriteString("Status:        Complete\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "States:        %d\n", summary.States)
	fmt.Fprintf(&sb, "Transitions:   %d\n", summary.Transitions)
	fmt.Fprintf(&sb, "Actions:       %d\n", summary.Actions)
	fmt.Fprintf(&sb, "URLs:          %d\n", summary.URLs)
	fmt.Fprintf(&sb, "Coverage:      %.0f%%\n", summary.Coverage*100)
	fmt.Fprintf(&sb, "Verifications: %d passed, %d failed\n", summary.VerifyPassed, summary.VerifyFailed)
	sb.WriteString("\n")

	w.writeIssues(&sb, result, colored)
	w.writeVerifications(&sb, result, colored)
	if w.verbose {
		w.writeStates(&sb, result)
	}

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	return w.output.Write([]byte(sb.String()))
}

func (w *ConsoleWriter) writeIssues(sb *strings.Builder, result *model.RunResult, colored bool) {
	if len(result.Issues) == 0 {
		sb.WriteString("No issues found.\n\n")
		return
	}

	counts := model.CountBySeverity(result.Issues)
	fmt.Fprintf(sb, "ISSUES (%d)", len(result.Issues))
	var parts []string
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeveritySerious, model.SeverityModerate, model.SeverityMinor} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	fmt.Fprintf(sb, "  [%s]\n", strings.Join(parts, ", "))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	for _, issue := range result.Issues {
		paint := severityPainter(issue.Severity, colored)
		fmt.Fprintf(sb, "%s %s: %s\n",
			paint(fmt.Sprintf("[%s]", strings.ToUpper(issue.Severity.String()))),
			issue.Rule, issue.Message)
		if issue.URL != "" {
			fmt.Fprintf(sb, "       at %s", issue.URL)
			if issue.Viewport != "" {
				fmt.Fprintf(sb, " (%s)", issue.Viewport)
			}
			sb.WriteString("\n")
		}
		if issue.Action != "" {
			fmt.Fprintf(sb, "       after %s\n", issue.Action)
		}
	}
	sb.WriteString("\n")
}

func (w *ConsoleWriter) writeVerifications(sb *strings.Builder, result *model.RunResult, colored bool) {
	if len(result.Verifications) == 0 {
		return
	}

	sb.WriteString("VERIFICATIONS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	pass := fmt.Sprint
	fail := fmt.Sprint
	if colored {
		pass = color.New(color.FgGreen).SprintFunc()
		fail = color.New(color.FgRed, color.Bold).SprintFunc()
	}

	for _, v := range result.Verifications {
		if v.Passed {
			fmt.Fprintf(sb, "%s %s: %s\n", pass("PASS"), v.Schema, v.Expectation)
		} else {
			fmt.Fprintf(sb, "%s %s: %s\n", fail("FAIL"), v.Schema, v.Expectation)
			if v.Message != "" {
				fmt.Fprintf(sb, "       %s\n", v.Message)
			}
		}
	}
	sb.WriteString("\n")
}

func (w *ConsoleWriter) writeStates(sb *strings.Builder, result *model.RunResult) {
	sb.WriteString("STATES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, s := range result.States {
		fmt.Fprintf(sb, "%3d  %s  depth=%d viewport=%s\n    %s\n",
			s.Index, s.Fingerprint[:12], s.Depth, s.Viewport, s.URL)
	}
	sb.WriteString("\n")
}
