package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewInitCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInitCmd_CreatesConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".ui-explorer.yaml")
	out, err := runInit(t, "-o", path)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "Wrote "+path) {
		t.Errorf("output = %q, want it to mention the written file", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading generated file: %v", err)
	}
	for _, key := range []string{"startUrls:", "maxDepth:", "driver:", "report:", "adapters:"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("generated config missing %q", key)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 0600", perm)
	}
}

func TestInitCmd_RefusesOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".ui-explorer.yaml")
	if err := os.WriteFile(path, []byte("existing: true\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := runInit(t, "-o", path)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Execute() error = %v, want already-exists error", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "existing: true\n" {
		t.Error("existing file was modified without --force")
	}
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".ui-explorer.yaml")
	if err := os.WriteFile(path, []byte("existing: true\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := runInit(t, "-o", path, "--force"); err != nil {
		t.Fatalf("Execute(--force) error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "startUrls:") {
		t.Error("--force did not replace the existing file")
	}
}

func TestInitCmd_CreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "configs", "staging.yaml")
	if _, err := runInit(t, "-o", path); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("generated file missing: %v", err)
	}
}
