// Package deploy runs the two-stage compose deployment: pull the latest
// images, then recreate the stack. Deployments are serialized through a
// Gate so only one can run at a time.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"composehook/internal/config"
	"composehook/pkg/cmdutil"
)

// Stage identifies one compose invocation within a deployment.
type Stage string

const (
	// StagePull fetches the latest images referenced by the compose file.
	StagePull Stage = "pull"

	// StageUp recreates the stack with the pulled images.
	StageUp Stage = "up"
)

// Result describes the outcome of the last stage that ran.
type Result struct {
	Stage    Stage
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// OK reports whether the stage exited with status zero.
func (r *Result) OK() bool {
	return r.ExitCode == 0
}

// ComposeFileError reports a missing compose file. The pre-check runs
// before any subprocess is spawned, so a deployment failing with this
// error has had no side effects.
type ComposeFileError struct {
	Path string
}

func (e *ComposeFileError) Error() string {
	return "compose file not found: " + e.Path
}

// RunnerFunc executes a single command. It exists so tests can observe
// stage sequencing without spawning real processes; the default is
// cmdutil.Run.
type RunnerFunc func(ctx context.Context, opts cmdutil.ExecOptions, cmdParts []string) (*cmdutil.Result, error)

// Option configures a Trigger.
type Option func(*Trigger)

// WithRunner replaces the command runner.
func WithRunner(run RunnerFunc) Option {
	return func(t *Trigger) {
		t.run = run
	}
}

// Trigger executes deployments for a single compose project.
type Trigger struct {
	composeDir  string
	composePath string
	command     []string
	timeout     time.Duration
	logger      *slog.Logger
	run         RunnerFunc
}

// NewTrigger builds a Trigger from the service configuration.
func NewTrigger(cfg *config.Config, logger *slog.Logger, opts ...Option) *Trigger {
	t := &Trigger{
		composeDir:  cfg.ComposeDir,
		composePath: cfg.ComposePath(),
		command:     cfg.ComposeArgv(),
		timeout:     cfg.CommandTimeout,
		logger:      logger,
		run:         cmdutil.Run,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Deploy runs the deployment stages in order, stopping at the first
// failure: up never runs when pull exits non-zero.
//
// A non-zero stage exit is not an error; the caller reads the outcome from
// the returned Result. Errors are reserved for conditions where a stage
// could not run at all: a *ComposeFileError when the compose file is
// missing (no subprocess runs in that case), or a wrapped execution error
// (binary not found, timeout).
func (t *Trigger) Deploy(ctx context.Context) (*Result, error) {
	if _, err := os.Stat(t.composePath); err != nil {
		if os.IsNotExist(err) {
			return nil, &ComposeFileError{Path: t.composePath}
		}
		return nil, fmt.Errorf("stat compose file: %w", err)
	}

	t.logger.Info("pulling latest images", "compose_file", t.composePath)
	pull, err := t.runStage(ctx, StagePull, t.stageArgv("pull"))
	if err != nil {
		return nil, err
	}
	if !pull.OK() {
		return pull, nil
	}

	t.logger.Info("restarting containers", "compose_file", t.composePath)
	return t.runStage(ctx, StageUp, t.stageArgv("up", "-d", "--remove-orphans"))
}

func (t *Trigger) stageArgv(args ...string) []string {
	argv := make([]string, 0, len(t.command)+2+len(args))
	argv = append(argv, t.command...)
	argv = append(argv, "-f", t.composePath)
	argv = append(argv, args...)
	return argv
}

func (t *Trigger) runStage(ctx context.Context, stage Stage, argv []string) (*Result, error) {
	res, err := t.run(ctx, cmdutil.ExecOptions{
		Dir:     t.composeDir,
		Timeout: t.timeout,
	}, argv)
	if err != nil {
		return nil, fmt.Errorf("%s stage: %w", stage, err)
	}

	result := &Result{
		Stage:    stage,
		ExitCode: res.ExitCode,
		Stdout:   string(res.Stdout),
		Stderr:   string(res.Stderr),
		Duration: res.Duration,
	}

	if result.OK() {
		t.logger.Debug("stage completed",
			"stage", string(stage),
			"command", cmdutil.FormatCommand(argv),
			"duration_ms", res.Duration.Milliseconds())
	} else {
		t.logger.Error("stage failed",
			"stage", string(stage),
			"command", cmdutil.FormatCommand(argv),
			"exit_code", res.ExitCode,
			"stderr", result.Stderr)
	}

	return result, nil
}
