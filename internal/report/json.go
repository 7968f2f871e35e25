package report

import (
	"encoding/json"
	"io"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// JSONWriter outputs the run result as indented JSON, the machine-readable
// format consumed by tooling and by the compare command's --json mode.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output)}
}

// jsonReport wraps the result with its computed summary so consumers do not
// have to re-derive counts.
type jsonReport struct {
	Summary model.Summary    `json:"summary"`
	Run     *model.RunResult `json:"run"`
}

// Write renders the run as JSON.
func (w *JSONWriter) Write(result *model.RunResult) (int, error) {
	data, err := json.MarshalIndent(jsonReport{
		Summary: result.Summarize(),
		Run:     result,
	}, "", "  ")
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
