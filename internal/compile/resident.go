package compile

import (
	"context"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/codegend/internal/config"
	"git.home.luguber.info/inful/codegend/internal/generator"
)

// ResidentOptions carries session construction options. They are opaque to
// the coordination layer and passed through to the underlying session.
type ResidentOptions struct {
	EntryPath                  string
	IncrementalSeed            string
	TrackWidgetCreation        bool
	UnsafePackageSerialization bool
	ExtraOptions               []string
}

// GeneratingResidentCompiler wraps a persistent incremental-compile session
// so every recompile observes current generated output without forcing a
// redundant generation cycle per call.
//
// The wrapper owns exactly one generation daemon handle and one underlying
// session for its whole lifetime; Shutdown destroys both.
type GeneratingResidentCompiler struct {
	daemon  *generator.Daemon
	session ResidentSession
	project config.ProjectConfig
	entry   string
	logger  *slog.Logger
}

// NewGeneratingResidentCompiler acquires the project's daemon, runs the
// initial generation cycle, and constructs the underlying session with the
// dual filesystem roots and the generated package map.
//
// A failed initial cycle is a warning, not an error: the session is still
// constructed and compiles best-effort against whatever generated output
// exists. This deliberately differs from the one-shot compiler, which treats
// failure as fatal.
func NewGeneratingResidentCompiler(
	ctx context.Context,
	gen generator.Generator,
	project config.ProjectConfig,
	opts ResidentOptions,
	factory SessionFactory,
	logger *slog.Logger,
) (*GeneratingResidentCompiler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	daemon, err := gen.Daemon(ctx)
	if err != nil {
		return nil, err
	}

	daemon.StartBuild()
	status, err := daemon.WaitForTerminal(ctx)
	if err != nil {
		return nil, err
	}
	if status == generator.StatusFailed {
		logger.Warn("code generation failed, compiling with the last generated output",
			"project", project.Root)
	}

	session, err := factory(ctx, SessionConfig{
		EntryPath:                  opts.EntryPath,
		FileSystemRoots:            MultiRoots(project.Root, project.GeneratedRoot),
		FileSystemScheme:           MultiRootScheme,
		PackagesPath:               project.PackagesPath,
		IncrementalSeed:            opts.IncrementalSeed,
		TrackWidgetCreation:        opts.TrackWidgetCreation,
		UnsafePackageSerialization: opts.UnsafePackageSerialization,
		ExtraOptions:               opts.ExtraOptions,
	})
	if err != nil {
		return nil, err
	}

	return &GeneratingResidentCompiler{
		daemon:  daemon,
		session: session,
		project: project,
		entry:   opts.EntryPath,
		logger:  logger,
	}, nil
}

// Recompile waits out any in-flight generation cycle, then delegates to the
// underlying session with the generated package map substituted.
//
// It never starts a cycle itself: triggering is the caller's job (watcher,
// scheduler, manual), which is what avoids a redundant generation run on
// every recompile of a rapid edit loop. When no cycle is in flight the
// cached LastStatus settles the call without touching the stream.
func (c *GeneratingResidentCompiler) Recompile(ctx context.Context, invalidated []string, outputPath string) (*CompileResult, error) {
	status := c.daemon.LastStatus()
	if !status.Terminal() {
		var err error
		status, err = c.daemon.WaitForTerminal(ctx)
		if err != nil {
			return nil, err
		}
	}
	if status == generator.StatusFailed {
		c.logger.Warn("code generation failed, attempting recompile with the last generated output",
			"project", c.project.Root)
	}

	// A leftover artifact from a differently-rooted compile must not be
	// reused; deleting it forces the session to write fresh output.
	if outputPath != "" {
		if _, err := os.Stat(outputPath); err == nil {
			if err := os.Remove(outputPath); err != nil {
				c.logger.Warn("failed to remove stale output artifact",
					"path", outputPath, "error", err)
			}
		}
	}

	return c.session.Recompile(ctx, RecompileRequest{
		EntryPath:        c.entry,
		InvalidatedFiles: invalidated,
		OutputPath:       outputPath,
		PackagesPath:     c.project.PackagesPath,
	})
}

// CompileExpression is a pure pass-through; expression evaluation does not
// interact with the generation daemon.
func (c *GeneratingResidentCompiler) CompileExpression(ctx context.Context, req ExpressionRequest) (*CompileResult, error) {
	return c.session.CompileExpression(ctx, req)
}

// Accept is a pure pass-through.
func (c *GeneratingResidentCompiler) Accept() { c.session.Accept() }

// Reject is a pure pass-through.
func (c *GeneratingResidentCompiler) Reject() error { return c.session.Reject() }

// Reset is a pure pass-through.
func (c *GeneratingResidentCompiler) Reset() { c.session.Reset() }

// Shutdown tears down the underlying session and the daemon handle together.
func (c *GeneratingResidentCompiler) Shutdown() error {
	err := c.session.Shutdown()
	c.daemon.Close()
	return err
}
