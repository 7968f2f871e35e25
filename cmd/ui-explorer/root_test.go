package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	if cmd.Use != "ui-explorer" {
		t.Errorf("Use = %q, want %q", cmd.Use, "ui-explorer")
	}
	if !cmd.SilenceUsage || !cmd.SilenceErrors {
		t.Error("root command should silence usage and errors")
	}

	want := map[string]bool{
		"explore": false,
		"compare": false,
		"init":    false,
		"version": false,
	}
	for _, sub := range cmd.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	if cmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("persistent flag --verbose not registered")
	}
}

func TestRootCmd_Help(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute(--help) error = %v", err)
	}
	if !strings.Contains(buf.String(), "state graph") {
		t.Errorf("help output missing description, got:\n%s", buf.String())
	}
}
