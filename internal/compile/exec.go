package compile

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/codegend/internal/errors"
)

// ExecCompiler invokes the underlying compiler binary as a subprocess,
// mapping the request surface to conventional command-line flags. It backs
// both the one-shot path and the restart-based resident session.
type ExecCompiler struct {
	argv   []string
	logger *slog.Logger
}

// NewExecCompiler creates a compiler adapter for the given argv.
func NewExecCompiler(argv []string, logger *slog.Logger) *ExecCompiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecCompiler{argv: argv, logger: logger}
}

// Compile runs the compiler to completion.
func (c *ExecCompiler) Compile(ctx context.Context, req CompileRequest) (*CompileResult, error) {
	if len(c.argv) == 0 {
		return nil, errors.New(errors.CategoryCompile, errors.SeverityFatal, "compiler command is empty")
	}

	args := append([]string(nil), c.argv[1:]...)
	for _, root := range req.FileSystemRoots {
		args = append(args, "--filesystem-root", root)
	}
	if req.FileSystemScheme != "" {
		args = append(args, "--filesystem-scheme", req.FileSystemScheme)
	}
	if req.PackagesPath != "" {
		args = append(args, "--packages", req.PackagesPath)
	}
	if req.OutputPath != "" {
		args = append(args, "--output", req.OutputPath)
	}
	if req.IncrementalStorePath != "" {
		args = append(args, "--incremental-store", req.IncrementalStorePath)
	}
	if req.DepFilePath != "" {
		args = append(args, "--depfile", req.DepFilePath)
	}
	if req.TargetModel != "" {
		args = append(args, "--target", req.TargetModel)
	}
	if req.SdkRoot != "" {
		args = append(args, "--sdk-root", req.SdkRoot)
	}
	if req.LinkPlatform {
		args = append(args, "--link-platform")
	}
	if req.AOT {
		args = append(args, "--aot")
	}
	if req.TrackWidgetCreation {
		args = append(args, "--track-widget-creation")
	}
	args = append(args, req.ExtraOptions...)
	args = append(args, req.EntryPath)

	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	c.logger.Debug("invoking compiler", "binary", c.argv[0], "entry", req.EntryPath)
	if err := cmd.Run(); err != nil {
		return nil, errors.CompileError(req.EntryPath, err).
			WithContext("output", output.String())
	}

	return &CompileResult{
		OutputPath:  req.OutputPath,
		Diagnostics: splitDiagnostics(output.String()),
	}, nil
}

func splitDiagnostics(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// execSession is a restart-based ResidentSession: each recompile runs the
// compiler binary afresh and relies on the compiler's own incremental byte
// store for speed. Lifecycle transitions are no-ops because no process stays
// resident between calls.
type execSession struct {
	compiler *ExecCompiler
	cfg      SessionConfig
}

// NewExecSessionFactory returns a SessionFactory backed by the compiler
// binary. incrementalStore may be empty.
func NewExecSessionFactory(argv []string, incrementalStore string, logger *slog.Logger) SessionFactory {
	return func(ctx context.Context, cfg SessionConfig) (ResidentSession, error) {
		if len(argv) == 0 {
			return nil, errors.New(errors.CategoryCompile, errors.SeverityFatal, "compiler command is empty")
		}
		if cfg.IncrementalSeed != "" && incrementalStore == "" {
			incrementalStore = cfg.IncrementalSeed
		}
		sess := &execSession{
			compiler: NewExecCompiler(argv, logger),
			cfg:      cfg,
		}
		sess.cfg.ExtraOptions = append(sess.cfg.ExtraOptions, extraSessionOptions(cfg)...)
		if incrementalStore != "" {
			sess.cfg.ExtraOptions = append(sess.cfg.ExtraOptions, "--incremental-store", incrementalStore)
		}
		return sess, nil
	}
}

func extraSessionOptions(cfg SessionConfig) []string {
	var opts []string
	if cfg.UnsafePackageSerialization {
		opts = append(opts, "--unsafe-package-serialization")
	}
	return opts
}

func (s *execSession) Accept()         {}
func (s *execSession) Reject() error   { return nil }
func (s *execSession) Reset()          {}
func (s *execSession) Shutdown() error { return nil }

func (s *execSession) Recompile(ctx context.Context, req RecompileRequest) (*CompileResult, error) {
	return s.compiler.Compile(ctx, CompileRequest{
		EntryPath:           req.EntryPath,
		OutputPath:          req.OutputPath,
		TrackWidgetCreation: s.cfg.TrackWidgetCreation,
		ExtraOptions:        s.cfg.ExtraOptions,
		FileSystemRoots:     s.cfg.FileSystemRoots,
		FileSystemScheme:    s.cfg.FileSystemScheme,
		PackagesPath:        req.PackagesPath,
	})
}

func (s *execSession) CompileExpression(ctx context.Context, req ExpressionRequest) (*CompileResult, error) {
	return nil, errors.New(errors.CategoryCompile, errors.SeverityError,
		"expression evaluation requires a resident compiler transport")
}
