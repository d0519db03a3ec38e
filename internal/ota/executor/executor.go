// Package executor runs a built Plan: each pipeline is formatted to a single
// shell command line and handed to /bin/sh, with an exclusive advisory lock
// guaranteeing at most one mutating ota-update instance per host.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/tiiuae/ghaf-givc/internal/ota"
	"github.com/tiiuae/ghaf-givc/internal/ota/plan"
)

// Executor runs one pipeline at a time; RunPlan drives a whole plan through
// it, aborting on the first failure.
type Executor interface {
	RunPipeline(ctx context.Context, p ota.Pipeline) error
}

// RunPlan executes every step of pl in order, stopping at the first error.
func RunPlan(ctx context.Context, ex Executor, pl plan.Plan) error {
	for _, step := range pl.Steps {
		if err := ex.RunPipeline(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// DryRun prints each command line instead of executing it.
type DryRun struct {
	Out io.Writer
}

func (d DryRun) RunPipeline(_ context.Context, p ota.Pipeline) error {
	out := d.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := fmt.Fprintf(out, "DRY-RUN: %s\n", p.FormatShell())
	return err
}

// Shell executes pipelines via `<shell> -c`, inheriting the process's stdio
// so dd progress and tool errors land on the operator's terminal. Every
// command start and outcome is written to the structured audit log.
type Shell struct {
	Shell string
	Log   *zap.Logger
}

// NewShell returns a Shell executor using /bin/sh and the given audit
// logger (zap.NewNop is substituted for nil).
func NewShell(log *zap.Logger) Shell {
	if log == nil {
		log = zap.NewNop()
	}
	return Shell{Shell: "/bin/sh", Log: log}
}

func (s Shell) RunPipeline(ctx context.Context, p ota.Pipeline) error {
	cmdline := p.FormatShell()
	s.Log.Info("run pipeline", zap.String("cmdline", cmdline))
	start := time.Now()

	cmd := exec.CommandContext(ctx, s.Shell, "-c", cmdline)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		s.Log.Error("pipeline failed",
			zap.String("cmdline", cmdline),
			zap.Int("exit", exitCode),
			zap.Duration("elapsed", time.Since(start)))
		return fmt.Errorf("pipeline failed (exit=%d): %s", exitCode, cmdline)
	}

	s.Log.Info("pipeline completed",
		zap.String("cmdline", cmdline),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
