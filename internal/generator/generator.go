// Package generator coordinates the incremental source-generation pipeline:
// it owns the generation daemon, its build-status stream, and the feature
// gate deciding whether the pipeline is engaged at all.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/codegend/internal/config"
	"git.home.luguber.info/inful/codegend/internal/errors"
)

// Generator provides access to the generation pipeline for one project.
//
// Two variants exist: the supported generator backed by the real generation
// tool, and an unsupported variant that fails every request immediately when
// the feature gate is disabled. The variant is selected once at process
// start; nothing else dispatches dynamically.
type Generator interface {
	// WriteBuildScript materializes the generation build script for the
	// project and returns its path.
	WriteBuildScript(ctx context.Context) (string, error)

	// Daemon returns the project's generation daemon, creating it on first
	// use. The same handle is returned for the generator's whole lifetime.
	Daemon(ctx context.Context) (*Daemon, error)
}

// Select picks the generator variant from the feature gate. This is the
// single selection point for the supported/unsupported split.
func Select(gate *config.FeatureGate, cfg *config.Config, logger *slog.Logger) Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if gate != nil && !gate.Enabled() {
		logger.Info("generation pipeline disabled", "env", config.EnableEnvVar)
		return &unsupportedGenerator{}
	}
	return &supportedGenerator{
		cfg:    cfg,
		runner: NewExecRunner(cfg.Generator.Command, logger),
		logger: logger,
	}
}

type supportedGenerator struct {
	cfg    *config.Config
	runner CycleRunner
	logger *slog.Logger

	mu     sync.Mutex
	daemon *Daemon
}

// NewSupported builds a supported generator with an explicit runner. Used by
// tests and by callers that drive generation through something other than
// the exec tool.
func NewSupported(cfg *config.Config, runner CycleRunner, logger *slog.Logger) Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &supportedGenerator{cfg: cfg, runner: runner, logger: logger}
}

func (g *supportedGenerator) WriteBuildScript(ctx context.Context) (string, error) {
	path := g.cfg.Generator.BuildScript
	if path == "" {
		path = filepath.Join(g.cfg.Project.GeneratedRoot, "build.sh")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "create build script directory")
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# Generated by codegend; invokes the configured generation tool.\n")
	b.WriteString(fmt.Sprintf("cd %q || exit 1\n", g.cfg.Project.Root))
	b.WriteString("exec")
	for _, arg := range g.cfg.Generator.Command {
		b.WriteString(fmt.Sprintf(" %q", arg))
	}
	b.WriteString(" \"$@\"\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "write build script")
	}

	g.logger.Debug("build script written", "path", path)
	return path, nil
}

func (g *supportedGenerator) Daemon(ctx context.Context) (*Daemon, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.daemon == nil {
		g.daemon = NewDaemon(g.cfg.Project.Root, g.runner, WithLogger(g.logger))
	}
	return g.daemon, nil
}

// unsupportedGenerator fails every pipeline request synchronously. It never
// produces a single status event.
type unsupportedGenerator struct{}

func (*unsupportedGenerator) WriteBuildScript(ctx context.Context) (string, error) {
	return "", errors.Unsupported("build-script")
}

func (*unsupportedGenerator) Daemon(ctx context.Context) (*Daemon, error) {
	return nil, errors.Unsupported("daemon")
}
