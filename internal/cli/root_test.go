package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// testConfig writes a config file pointing storage at a temp directory.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "storage:\n  backend: dir\n  dir: " + filepath.Join(dir, "data") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCLI executes the root command with args and captures its output.
func runCLI(args ...string) (string, error) {
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInvalidFormatRejected(t *testing.T) {
	_, err := runCLI("session", "list", "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Fatalf("err = %v, want invalid format error", err)
	}
}

var createdID = regexp.MustCompile(`Created session (\S+)`)

func TestSessionLifecycle(t *testing.T) {
	cfg := testConfig(t)

	out, err := runCLI("session", "create", "Access Policy", "--config", cfg)
	if err != nil {
		t.Fatalf("create: %v\n%s", err, out)
	}
	m := createdID.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("create output missing session ID: %q", out)
	}
	id := m[1]

	out, err = runCLI("session", "list", "--config", cfg)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Access Policy") {
		t.Errorf("list output missing session name: %q", out)
	}

	out, err = runCLI("session", "show", id, "--config", cfg)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Session: Access Policy") {
		t.Errorf("show output = %q", out)
	}

	out, err = runCLI("timeline", id, "--config", cfg)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if !strings.Contains(out, "SessionCreated") {
		t.Errorf("timeline output missing creation event: %q", out)
	}

	out, err = runCLI("integrity", id, "--config", cfg)
	if err != nil {
		t.Fatalf("integrity: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Event log is valid") {
		t.Errorf("integrity output = %q", out)
	}

	out, err = runCLI("replay", id, "--config", cfg)
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Replayed session "+id) {
		t.Errorf("replay output = %q", out)
	}

	if _, err := runCLI("session", "delete", id, "--config", cfg); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, err = runCLI("session", "list", "--config", cfg)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if !strings.Contains(out, "No sessions found.") {
		t.Errorf("list after delete = %q", out)
	}
}

func TestSessionCreateRejectsEmptyName(t *testing.T) {
	cfg := testConfig(t)

	_, err := runCLI("session", "create", "   ", "--config", cfg)
	if err == nil {
		t.Fatal("create accepted a blank name")
	}
	if GetExitCode(err) != ExitFailure {
		t.Errorf("exit code = %d, want %d", GetExitCode(err), ExitFailure)
	}
}

func TestValidateFile(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.cue")
	if err := os.WriteFile(good, []byte("role: \"admin\"\nallow: true\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	out, err := runCLI("validate", good, "--config", cfg)
	if err != nil {
		t.Fatalf("validate valid policy: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Policy is valid") {
		t.Errorf("output = %q", out)
	}

	bad := filepath.Join(dir, "bad.cue")
	if err := os.WriteFile(bad, []byte("allow: true\nallow: false\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	out, err = runCLI("validate", bad, "--config", cfg)
	if err == nil {
		t.Fatalf("conflicting policy validated:\n%s", out)
	}
	if GetExitCode(err) != ExitFailure {
		t.Errorf("exit code = %d, want %d", GetExitCode(err), ExitFailure)
	}
}

func TestValidateRequiresInput(t *testing.T) {
	cfg := testConfig(t)

	_, err := runCLI("validate", "--config", cfg)
	if err == nil {
		t.Fatal("validate ran with nothing to validate")
	}
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d, want %d", GetExitCode(err), ExitCommandError)
	}
}

func TestRecoverHealthySession(t *testing.T) {
	cfg := testConfig(t)

	out, err := runCLI("session", "create", "Healthy", "--config", cfg)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := createdID.FindStringSubmatch(out)[1]

	out, err = runCLI("recover", id, "--config", cfg)
	if err != nil {
		t.Fatalf("recover: %v\n%s", err, out)
	}
	if !strings.Contains(out, id+": success") {
		t.Errorf("recover output = %q", out)
	}
}

func TestScanEmptyStore(t *testing.T) {
	cfg := testConfig(t)

	out, err := runCLI("scan", "--config", cfg)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "Scanned 0 session(s)") {
		t.Errorf("scan output = %q", out)
	}
}
