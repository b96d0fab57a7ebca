package compile

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/codegend/internal/config"
	"git.home.luguber.info/inful/codegend/internal/errors"
	"git.home.luguber.info/inful/codegend/internal/generator"
)

// GeneratingCompiler performs exactly one compilation preceded by exactly one
// fresh generation cycle.
//
// Unlike the resident wrapper, a failed cycle here is fatal: a one-shot
// compile has no session to retry on, so the operation aborts with a
// user-visible error and the underlying compiler is never invoked.
type GeneratingCompiler struct {
	gen      generator.Generator
	project  config.ProjectConfig
	compiler Compiler
	logger   *slog.Logger
}

// NewGeneratingCompiler wraps the underlying compiler for the project.
func NewGeneratingCompiler(gen generator.Generator, project config.ProjectConfig, compiler Compiler, logger *slog.Logger) *GeneratingCompiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeneratingCompiler{
		gen:      gen,
		project:  project,
		compiler: compiler,
		logger:   logger,
	}
}

// Compile forces a generation cycle, waits for its terminal status, then
// delegates with the dual filesystem roots and the generated package map
// injected. The request's own roots, scheme, dep file, target model, sdk
// root and package path are not honored in this mode.
func (c *GeneratingCompiler) Compile(ctx context.Context, req CompileRequest) (*CompileResult, error) {
	c.noteIgnoredFields(req)

	daemon, err := c.gen.Daemon(ctx)
	if err != nil {
		return nil, err
	}

	// Subscribe before triggering so the fresh cycle's terminal event cannot
	// be missed. One-shot compiles always force a cycle; if one is already
	// in flight the trigger coalesces and its terminal settles this compile.
	results, cancel := daemon.BuildResults(4)
	defer cancel()
	daemon.StartBuild()

	status, err := awaitTerminal(ctx, results)
	if err != nil {
		return nil, err
	}
	if status == generator.StatusFailed {
		return nil, errors.GenerationFailed(c.project.Root)
	}

	req.FileSystemRoots = MultiRoots(c.project.Root, c.project.GeneratedRoot)
	req.FileSystemScheme = MultiRootScheme
	req.PackagesPath = c.project.PackagesPath
	req.DepFilePath = ""
	req.TargetModel = ""
	req.SdkRoot = ""

	return c.compiler.Compile(ctx, req)
}

// awaitTerminal consumes the stream until a terminal status arrives.
func awaitTerminal(ctx context.Context, results <-chan generator.StatusEvent) (generator.BuildStatus, error) {
	for {
		select {
		case ev, ok := <-results:
			if !ok {
				return "", errors.DaemonError("generation daemon closed during compile")
			}
			if ev.Status.Terminal() {
				return ev.Status, nil
			}
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), errors.CategoryDaemon, errors.SeverityError,
				"canceled while waiting for generation result")
		}
	}
}

func (c *GeneratingCompiler) noteIgnoredFields(req CompileRequest) {
	ignored := map[string]bool{
		"file_system_roots":  len(req.FileSystemRoots) > 0,
		"file_system_scheme": req.FileSystemScheme != "",
		"dep_file":           req.DepFilePath != "",
		"target_model":       req.TargetModel != "",
		"sdk_root":           req.SdkRoot != "",
		"packages_path":      req.PackagesPath != "",
	}
	for field, set := range ignored {
		if set {
			c.logger.Debug("compile parameter not supported with code generation, ignoring",
				"parameter", field)
		}
	}
}
