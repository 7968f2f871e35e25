package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// HTMLWriter outputs reports as a standalone HTML page.
//
// Design decision: Rather than maintain a second template, the HTML report
// reuses the Markdown writer and renders its output through goldmark:
//  1. One source of truth for report content across both formats
//  2. GFM tables and alerts render natively in the browser
//  3. The page is self-contained, so it can be attached to a ticket or
//     archived without extra assets
type HTMLWriter struct {
	baseWriter
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer) *HTMLWriter {
	return &HTMLWriter{baseWriter: newBaseWriter(output)}
}

// htmlPage wraps the rendered report body in a minimal standalone document.
var htmlPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>UI Explorer Report — {{.Target}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #d1d9e0; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #f6f8fa; }
code { background: #f6f8fa; padding: 0.1rem 0.3rem; border-radius: 4px; font-size: 0.9em; }
pre { background: #f6f8fa; padding: 1rem; border-radius: 6px; overflow-x: auto; }
blockquote { border-left: 4px solid #d1d9e0; margin: 0; padding: 0 1rem; color: #59636e; }
h1, h2 { border-bottom: 1px solid #d1d9e0; padding-bottom: 0.3rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Write renders the run as a standalone HTML page.
func (w *HTMLWriter) Write(result *model.RunResult) (int, error) {
	var md bytes.Buffer
	if _, err := NewMarkdownWriter(&md).Write(result); err != nil {
		return 0, fmt.Errorf("failed to render report markdown: %w", err)
	}

	converter := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	var body bytes.Buffer
	if err := converter.Convert(md.Bytes(), &body); err != nil {
		return 0, fmt.Errorf("failed to convert report to HTML: %w", err)
	}

	var page bytes.Buffer
	err := htmlPage.Execute(&page, struct {
		Target string
		Body   template.HTML
	}{
		Target: result.Target,
		Body:   template.HTML(body.String()),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to render report page: %w", err)
	}
	return w.output.Write(page.Bytes())
}
