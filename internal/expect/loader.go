package expect

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// File is the on-disk schema configuration: a testData table plus the
// schema list in declaration order.
type File struct {
	// TestData maps placeholder keys to the values substituted into setup
	// steps and expectation clauses.
	TestData map[string]string `yaml:"testData,omitempty"`

	// Schemas are matched first-wins in this order.
	Schemas []*Schema `yaml:"schemas"`
}

// placeholderRe matches {{testData.KEY}} with optional inner spacing.
var placeholderRe = regexp.MustCompile(`\{\{\s*testData\.([A-Za-z0-9_.-]+)\s*\}\}`)

// LoadFile reads a schema configuration from a YAML file, resolves its
// testData placeholders, and validates every schema. If the file does not
// exist, it returns ErrSchemasNotFound.
//
// The table consulted for placeholders layers three sources, most specific
// last: the generated values for seed (see GeneratedTestData), the file's
// own testData entries, then the extra tables in order. Later wins, so a
// file literal shadows a generated value and a caller override shadows both.
func LoadFile(path string, seed int64, extra ...map[string]string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided schema path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSchemasNotFound
		}
		return nil, err
	}
	return Parse(data, seed, extra...)
}

// Parse decodes schema configuration from YAML bytes. Separated from
// LoadFile so tests and embedded defaults can parse without touching disk.
// Placeholder layering is as documented on LoadFile.
func Parse(data []byte, seed int64, extra ...map[string]string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}

	table := GeneratedTestData(seed)
	for k, v := range f.TestData {
		table[k] = v
	}
	for _, m := range extra {
		for k, v := range m {
			table[k] = v
		}
	}
	f.TestData = table

	for _, s := range f.Schemas {
		if err := substituteSchema(s, table); err != nil {
			return nil, err
		}
		if err := s.compile(true); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// substituteSchema resolves {{testData.KEY}} placeholders in the schema's
// setup values and expectation clauses. Matcher fields are left alone:
// matchers describe the page, not test data.
func substituteSchema(s *Schema, table map[string]string) error {
	for i := range s.Setup {
		v, err := Substitute(s.Setup[i].Value, table)
		if err != nil {
			return fmt.Errorf("schema %q setup %d: %w", s.Name, i, err)
		}
		s.Setup[i].Value = v
	}
	for i := range s.Expectations {
		exp := &s.Expectations[i]
		for k, raw := range exp.Where {
			v, err := Substitute(raw, table)
			if err != nil {
				return fmt.Errorf("schema %q expectation %d where[%s]: %w", s.Name, i, k, err)
			}
			exp.Where[k] = v
		}
		for k, raw := range exp.Check {
			v, err := Substitute(raw, table)
			if err != nil {
				return fmt.Errorf("schema %q expectation %d check[%s]: %w", s.Name, i, k, err)
			}
			exp.Check[k] = v
		}
		v, err := Substitute(exp.Text, table)
		if err != nil {
			return fmt.Errorf("schema %q expectation %d text: %w", s.Name, i, err)
		}
		exp.Text = v
	}
	if s.FollowUp != nil {
		return substituteSchema(s.FollowUp, table)
	}
	return nil
}

// Substitute resolves every {{testData.KEY}} placeholder in s against the
// table. A placeholder whose key is absent is an error, not silence: a typo
// in a schema file must fail loudly at load time, not produce actions that
// type the literal placeholder into the application.
func Substitute(s string, table map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(s, func(ph string) string {
		key := placeholderRe.FindStringSubmatch(ph)[1]
		if v, ok := table[key]; ok {
			return v
		}
		if missing == "" {
			missing = key
		}
		return ph
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %q", ErrUnresolvedTestData, missing)
	}
	return out, nil
}
