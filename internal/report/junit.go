package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// JUnitWriter outputs reports in JUnit XML format so CI systems can surface
// exploration results as test outcomes.
//
// Design decision: The mapping to test cases is:
//  1. Every verification becomes one testcase in the "verifications" suite;
//     failed expectations become <failure> elements
//  2. Every issue rule becomes one testcase in the "validators" suite, so a
//     rule firing at fifty URLs is one red test with fifty locations, not
//     fifty red tests drowning the signal
type JUnitWriter struct {
	baseWriter
}

// NewJUnitWriter creates a JUnitWriter that outputs to the given writer.
func NewJUnitWriter(output io.Writer) *JUnitWriter {
	return &JUnitWriter{baseWriter: newBaseWriter(output)}
}

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Name    string           `xml:"name,attr"`
	Tests   int              `xml:"tests,attr"`
	Fails   int              `xml:"failures,attr"`
	Time    string           `xml:"time,attr"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name  string          `xml:"name,attr"`
	Tests int             `xml:"tests,attr"`
	Fails int             `xml:"failures,attr"`
	Cases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// Write renders the run as JUnit XML.
func (w *JUnitWriter) Write(result *model.RunResult) (int, error) {
	suites := junitTestSuites{
		Name: "ui-explorer: " + result.Target,
		Time: fmt.Sprintf("%.3f", result.Duration().Seconds()),
		Suites: []junitTestSuite{
			verificationSuite(result),
			validatorSuite(result),
		},
	}
	for _, s := range suites.Suites {
		suites.Tests += s.Tests
		suites.Fails += s.Fails
	}

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal JUnit report: %w", err)
	}
	n, err := w.output.Write([]byte(xml.Header))
	if err != nil {
		return n, err
	}
	m, err := w.output.Write(append(data, '\n'))
	return n + m, err
}

func verificationSuite(result *model.RunResult) junitTestSuite {
	suite := junitTestSuite{Name: "verifications"}
	for _, v := range result.Verifications {
		tc := junitTestCase{
			Name:      v.Schema + ": " + v.Expectation,
			ClassName: v.Schema,
		}
		if !v.Passed {
			suite.Fails++
			tc.Failure = &junitFailure{
				Message: v.Message,
				Type:    "expectation-failed",
				Body:    v.Message,
			}
		}
		suite.Cases = append(suite.Cases, tc)
	}
	suite.Tests = len(suite.Cases)
	return suite
}

func validatorSuite(result *model.RunResult) junitTestSuite {
	byRule := make(map[string][]model.Issue)
	for _, issue := range result.Issues {
		byRule[issue.Rule] = append(byRule[issue.Rule], issue)
	}
	rules := make([]string, 0, len(byRule))
	for rule := range byRule {
		rules = append(rules, rule)
	}
	sort.Strings(rules)

	suite := junitTestSuite{Name: "validators"}
	for _, rule := range rules {
		issues := byRule[rule]
		body := ""
		for _, issue := range issues {
			body += fmt.Sprintf("[%s] %s at %s (%s)\n",
				issue.Severity, issue.Message, issue.URL, issue.Viewport)
		}
		suite.Fails++
		suite.Cases = append(suite.Cases, junitTestCase{
			Name:      rule,
			ClassName: issues[0].Validator,
			Failure: &junitFailure{
				Message: fmt.Sprintf("%d occurrence(s)", len(issues)),
				Type:    rule,
				Body:    body,
			},
		})
	}
	suite.Tests = len(suite.Cases)
	return suite
}
