package generator

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"

	"git.home.luguber.info/inful/codegend/internal/errors"
)

// CycleRunner runs one generation cycle for a project. The daemon treats the
// invocation as opaque: a nil return is a Succeeded cycle, any error a Failed
// one.
type CycleRunner interface {
	RunCycle(ctx context.Context, projectRoot string) error
}

// ExecRunner invokes the configured generation tool as a subprocess in the
// project root.
type ExecRunner struct {
	argv   []string
	logger *slog.Logger
}

// NewExecRunner creates a runner for the given argv. The first element is the
// tool binary, the rest its arguments.
func NewExecRunner(argv []string, logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{argv: argv, logger: logger}
}

// RunCycle runs the tool to completion. Tool output is captured and attached
// to the returned error on failure.
func (r *ExecRunner) RunCycle(ctx context.Context, projectRoot string) error {
	if len(r.argv) == 0 {
		return errors.New(errors.CategoryGenerate, errors.SeverityError, "generation tool command is empty")
	}

	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Dir = projectRoot

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.logger.Debug("running generation tool", "tool", r.argv[0], "dir", projectRoot)
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, errors.CategoryGenerate, errors.SeverityError, "generation tool failed").
			WithContext("tool", r.argv[0]).
			WithContext("output", output.String())
	}
	return nil
}
