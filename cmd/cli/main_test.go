package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AIRPLAY_DB_PATH", "")
	t.Setenv("ACOUSTID_API_KEY", "")
	t.Setenv("AUDD_API_TOKEN", "")
	t.Setenv("AIRPLAY_PORT", "")
	return filepath.Join(dir, "cli.sqlite3")
}

func TestChannelAddAndList(t *testing.T) {
	db := setupCLI(t)

	out, err := runCLI(t, "--db", db, "channel", "add", "--id", "nova", "--name", "Radio Nova", "--url", "http://nova.example/live")
	if err != nil {
		t.Fatalf("channel add failed: %v", err)
	}
	if !strings.Contains(out, "Registered radio channel \"Radio Nova\" with ID nova") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = runCLI(t, "--db", db, "channel", "list")
	if err != nil {
		t.Fatalf("channel list failed: %v", err)
	}
	if !strings.Contains(out, "nova") || !strings.Contains(out, "http://nova.example/live") {
		t.Errorf("channel missing from list: %q", out)
	}

	if _, err := runCLI(t, "--db", db, "channel", "add", "--name", "Bad", "--url", "x", "--type", "podcast"); err == nil {
		t.Error("expected an error for an unknown channel type")
	}
}

func TestDetectionsEmpty(t *testing.T) {
	db := setupCLI(t)

	out, err := runCLI(t, "--db", db, "detections")
	if err != nil {
		t.Fatalf("detections failed: %v", err)
	}
	if !strings.Contains(out, "No detections") {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := runCLI(t, "--db", db, "detections", "--since", "last week"); err == nil {
		t.Error("expected an error for a malformed date")
	}
}

func TestCommandErrors(t *testing.T) {
	db := setupCLI(t)

	if _, err := runCLI(t, "--db", db, "correct", "missing-detection", "missing-song"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
	if _, err := runCLI(t, "--db", db, "correct", "only-one-arg"); err == nil {
		t.Error("expected an argument count error")
	}
	if _, err := runCLI(t, "--db", db, "identify"); err == nil || !strings.Contains(err.Error(), "--channel") {
		t.Errorf("expected --channel error, got %v", err)
	}
	if _, err := runCLI(t, "--db", db, "monitor"); err == nil {
		t.Error("expected --channel error for monitor")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
