package deploy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"composehook/internal/config"
	"composehook/pkg/cmdutil"
)

type stageCall struct {
	argv []string
	dir  string
}

// scriptedRunner records every invocation and plays back canned results in
// order, so tests can assert stage sequencing without real subprocesses.
type scriptedRunner struct {
	calls   []stageCall
	results []*cmdutil.Result
	errs    []error
}

func (sr *scriptedRunner) run(_ context.Context, opts cmdutil.ExecOptions, cmdParts []string) (*cmdutil.Result, error) {
	idx := len(sr.calls)
	sr.calls = append(sr.calls, stageCall{argv: cmdParts, dir: opts.Dir})

	var res *cmdutil.Result
	var err error
	if idx < len(sr.results) {
		res = sr.results[idx]
	}
	if idx < len(sr.errs) {
		err = sr.errs[idx]
	}
	if res == nil {
		res = &cmdutil.Result{}
	}
	return res, err
}

func testConfig(t *testing.T, composeDir string) *config.Config {
	t.Helper()

	t.Setenv("COMPOSE_DIR", composeDir)
	t.Setenv("COMPOSE_FILE", "docker-compose.prod.yml")
	t.Setenv("COMPOSE_COMMAND", "docker compose")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func writeComposeFile(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "docker-compose.prod.yml")
	if err := os.WriteFile(path, []byte("services: {}\n"), 0644); err != nil {
		t.Fatalf("Failed to write compose file: %v", err)
	}
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrigger_MissingComposeFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := testConfig(t, tmpDir)

	runner := &scriptedRunner{}
	trigger := NewTrigger(cfg, testLogger(), WithRunner(runner.run))

	result, err := trigger.Deploy(context.Background())
	if err == nil {
		t.Fatal("Deploy() should fail when the compose file is missing")
	}
	if result != nil {
		t.Errorf("Deploy() result = %+v, want nil", result)
	}

	var cfe *ComposeFileError
	if !errors.As(err, &cfe) {
		t.Fatalf("Deploy() error = %v, want *ComposeFileError", err)
	}
	if !strings.Contains(err.Error(), "compose file not found") {
		t.Errorf("Deploy() error = %q, want it to mention the missing file", err)
	}

	if len(runner.calls) != 0 {
		t.Errorf("Deploy() spawned %d commands for a missing compose file, want 0", len(runner.calls))
	}
}

func TestTrigger_PullFailureStopsDeployment(t *testing.T) {
	tmpDir := t.TempDir()
	writeComposeFile(t, tmpDir)
	cfg := testConfig(t, tmpDir)

	runner := &scriptedRunner{
		results: []*cmdutil.Result{
			{ExitCode: 1, Stderr: []byte("manifest unknown")},
		},
	}
	trigger := NewTrigger(cfg, testLogger(), WithRunner(runner.run))

	result, err := trigger.Deploy(context.Background())
	if err != nil {
		t.Fatalf("Deploy() error = %v, want nil (stage failure is not an error)", err)
	}

	if result.Stage != StagePull {
		t.Errorf("Result.Stage = %q, want %q", result.Stage, StagePull)
	}
	if result.OK() {
		t.Error("Result.OK() = true for a failed pull")
	}
	if result.Stderr != "manifest unknown" {
		t.Errorf("Result.Stderr = %q, want %q", result.Stderr, "manifest unknown")
	}

	if len(runner.calls) != 1 {
		t.Fatalf("Deploy() ran %d commands after pull failure, want 1 (up must not run)", len(runner.calls))
	}
}

func TestTrigger_SuccessRunsBothStages(t *testing.T) {
	tmpDir := t.TempDir()
	composePath := writeComposeFile(t, tmpDir)
	cfg := testConfig(t, tmpDir)

	runner := &scriptedRunner{
		results: []*cmdutil.Result{
			{ExitCode: 0, Stdout: []byte("Pulling app ... done")},
			{ExitCode: 0, Stdout: []byte("Recreating app ... done")},
		},
	}
	trigger := NewTrigger(cfg, testLogger(), WithRunner(runner.run))

	result, err := trigger.Deploy(context.Background())
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if result.Stage != StageUp {
		t.Errorf("Result.Stage = %q, want %q", result.Stage, StageUp)
	}
	if !result.OK() {
		t.Errorf("Result.OK() = false, exit code %d", result.ExitCode)
	}

	if len(runner.calls) != 2 {
		t.Fatalf("Deploy() ran %d commands, want 2", len(runner.calls))
	}

	wantPull := []string{"docker", "compose", "-f", composePath, "pull"}
	if !equalArgv(runner.calls[0].argv, wantPull) {
		t.Errorf("First invocation = %v, want %v", runner.calls[0].argv, wantPull)
	}

	wantUp := []string{"docker", "compose", "-f", composePath, "up", "-d", "--remove-orphans"}
	if !equalArgv(runner.calls[1].argv, wantUp) {
		t.Errorf("Second invocation = %v, want %v", runner.calls[1].argv, wantUp)
	}

	for i, c := range runner.calls {
		if c.dir != tmpDir {
			t.Errorf("Invocation %d working dir = %q, want %q", i, c.dir, tmpDir)
		}
	}
}

func TestTrigger_UpFailure(t *testing.T) {
	tmpDir := t.TempDir()
	writeComposeFile(t, tmpDir)
	cfg := testConfig(t, tmpDir)

	runner := &scriptedRunner{
		results: []*cmdutil.Result{
			{ExitCode: 0},
			{ExitCode: 2, Stderr: []byte("port is already allocated")},
		},
	}
	trigger := NewTrigger(cfg, testLogger(), WithRunner(runner.run))

	result, err := trigger.Deploy(context.Background())
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	if result.Stage != StageUp {
		t.Errorf("Result.Stage = %q, want %q", result.Stage, StageUp)
	}
	if result.ExitCode != 2 {
		t.Errorf("Result.ExitCode = %d, want 2", result.ExitCode)
	}
	if result.Stderr != "port is already allocated" {
		t.Errorf("Result.Stderr = %q", result.Stderr)
	}
	if len(runner.calls) != 2 {
		t.Errorf("Deploy() ran %d commands, want 2", len(runner.calls))
	}
}

func TestTrigger_RunnerError(t *testing.T) {
	tmpDir := t.TempDir()
	writeComposeFile(t, tmpDir)
	cfg := testConfig(t, tmpDir)

	runner := &scriptedRunner{
		errs: []error{errors.New(`command docker: executable file not found in $PATH`)},
	}
	trigger := NewTrigger(cfg, testLogger(), WithRunner(runner.run))

	result, err := trigger.Deploy(context.Background())
	if err == nil {
		t.Fatal("Deploy() should propagate runner errors")
	}
	if result != nil {
		t.Errorf("Deploy() result = %+v, want nil", result)
	}
	if !strings.Contains(err.Error(), "pull stage") {
		t.Errorf("Deploy() error = %q, want it to name the failing stage", err)
	}
	if len(runner.calls) != 1 {
		t.Errorf("Deploy() ran %d commands, want 1", len(runner.calls))
	}
}

func TestTrigger_CustomComposeCommand(t *testing.T) {
	tmpDir := t.TempDir()
	composePath := writeComposeFile(t, tmpDir)

	t.Setenv("COMPOSE_DIR", tmpDir)
	t.Setenv("COMPOSE_FILE", "docker-compose.prod.yml")
	t.Setenv("COMPOSE_COMMAND", "docker-compose")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	runner := &scriptedRunner{
		results: []*cmdutil.Result{{ExitCode: 0}, {ExitCode: 0}},
	}
	trigger := NewTrigger(cfg, testLogger(), WithRunner(runner.run))

	if _, err := trigger.Deploy(context.Background()); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	wantPull := []string{"docker-compose", "-f", composePath, "pull"}
	if !equalArgv(runner.calls[0].argv, wantPull) {
		t.Errorf("First invocation = %v, want %v", runner.calls[0].argv, wantPull)
	}
}

func equalArgv(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
