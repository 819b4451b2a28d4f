package cmd

import (
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	output, err := executeCommand(t, "--help")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, want := range []string{"symphony", "build plans"} {
		if !strings.Contains(output, want) {
			t.Errorf("Help output missing %q:\n%s", want, output)
		}
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "symphony" {
		t.Errorf("Use = %q, want symphony", cmd.Use)
	}

	want := map[string]bool{
		"run":     false,
		"plan":    false,
		"agents":  false,
		"history": false,
		"version": false,
	}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}

func TestRootCommandVersionFlag(t *testing.T) {
	output, err := executeCommand(t, "--version")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "version") {
		t.Errorf("Expected version output, got: %s", output)
	}
}

func TestRootCommandUnknownSubcommand(t *testing.T) {
	_, err := executeCommand(t, "compose")
	if err == nil {
		t.Fatal("Expected error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("Expected unknown command error, got: %v", err)
	}
}
