package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
//  1. Type-safe markdown generation
//  2. Support for tables, lists, and code blocks
//  3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write renders the run as Markdown.
func (w *MarkdownWriter) Write(result *model.RunResult) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := result.Summarize()

	w.writeHeader(md, result, summary)
	w.writeSeveritySummary(md, summary)
	w.writeIssues(md, result)
	w.writeVerifications(md, result)
	w.writeStates(md, result)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.RunResult, summary model.Summary) {
	md.H1("UI Explorer Report")
	md.PlainText("")

	status := "Complete"
	switch {
	case result.Error != "":
		status = "Aborted: " + result.Error
	case result.HitMaxStates || result.HitMaxDepth:
		status = "Complete (caps reached, results are a lower bound)"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + result.Target + "`"},
			{"Run", result.RunID},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", result.Duration().String()},
			{"States", strconv.Itoa(summary.States)},
			{"Transitions", strconv.Itoa(summary.Transitions)},
			{"Actions", strconv.Itoa(summary.Actions)},
			{"Coverage", fmt.Sprintf("%.0f%%", summary.Coverage*100)},
			{"Status", status},
		},
	})
	md.PlainText("")

	switch {
	case summary.BySeverity[model.SeverityCritical] > 0 || summary.VerifyFailed > 0:
		md.Cautionf("%d critical issue(s) and %d failed verification(s): declared side effects are broken.",
			summary.BySeverity[model.SeverityCritical], summary.VerifyFailed)
	case summary.BySeverity[model.SeveritySerious] > 0:
		md.Warningf("%d serious issue(s) found: user-visible flows are affected.",
			summary.BySeverity[model.SeveritySerious])
	case summary.Issues > 0:
		md.Note("Only moderate and minor issues detected.")
	default:
		md.Tip("No issues detected and every verification passed.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeSeveritySummary(md *markdown.Markdown, summary model.Summary) {
	md.H2("Severity Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"Critical", strconv.Itoa(summary.BySeverity[model.SeverityCritical])},
			{"Serious", strconv.Itoa(summary.BySeverity[model.SeveritySerious])},
			{"Moderate", strconv.Itoa(summary.BySeverity[model.SeverityModerate])},
			{"Minor", strconv.Itoa(summary.BySeverity[model.SeverityMinor])},
		},
	})

	if summary.Issues > 0 {
		w.writePieChart(md, summary)
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Issue Severity Distribution"),
		piechart.WithShowData(true),
	)

	for _, sev := range []model.Severity{
		model.SeverityCritical, model.SeveritySerious, model.SeverityModerate, model.SeverityMinor,
	} {
		if n := summary.BySeverity[sev]; n > 0 {
			chart.LabelAndIntValue(titleSeverity(sev), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeIssues(md *markdown.Markdown, result *model.RunResult) {
	md.H2("Issues")
	md.PlainText("")

	if len(result.Issues) == 0 {
		md.PlainText("No issues found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		where := issue.URL
		if issue.Viewport != "" {
			where += " (" + issue.Viewport + ")"
		}
		rows = append(rows, []string{
			titleSeverity(issue.Severity),
			issue.Rule,
			issue.Message,
			where,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Rule", "Message", "Where"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeVerifications(md *markdown.Markdown, result *model.RunResult) {
	if len(result.Verifications) == 0 {
		return
	}
	md.H2("Verifications")
	md.PlainText("")

	rows := make([][]string, 0, len(result.Verifications))
	for _, v := range result.Verifications {
		outcome := "✅ pass"
		if !v.Passed {
			outcome = "❌ fail"
		}
		rows = append(rows, []string{outcome, v.Schema, v.Expectation, v.Message})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Schema", "Expectation", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStates(md *markdown.Markdown, result *model.RunResult) {
	md.H2("Explored States")
	md.PlainText("")

	rows := make([][]string, 0, len(result.States))
	for _, s := range result.States {
		rows = append(rows, []string{
			strconv.Itoa(s.Index),
			"`" + s.Fingerprint[:12] + "`",
			s.URL,
			s.Viewport,
			strconv.Itoa(s.Depth),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Fingerprint", "URL", "Viewport", "Depth"},
		Rows:   rows,
	})
	md.PlainText("")
}

// titleSeverity renders a severity with an initial capital for tables.
func titleSeverity(sev model.Severity) string {
	s := sev.String()
	if s == "" {
		return s
	}
	return fmt.Sprintf("%c%s", s[0]-('a'-'A'), s[1:])
}
