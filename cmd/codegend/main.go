package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/codegend/internal/config"
	cerrors "git.home.luguber.info/inful/codegend/internal/errors"
	"git.home.luguber.info/inful/codegend/internal/generator"
	"git.home.luguber.info/inful/codegend/internal/version"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"codegend.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Compile struct {
		Entry  string `arg:"" help:"Entry point to compile"`
		Output string `short:"o" help:"Output artifact path"`
		AOT    bool   `help:"Compile ahead-of-time"`
	} `cmd:"" help:"Run one generation cycle, then compile the entry point"`

	Serve struct {
		Entry  string `arg:"" help:"Entry point for the resident session"`
		Output string `short:"o" help:"Output artifact path for recompiles"`
	} `cmd:"" help:"Run the generation daemon with a resident compiler session"`

	Script struct{} `cmd:"" help:"Write the generation build script"`

	History struct {
		Limit int `short:"n" help:"Number of cycles to show" default:"20"`
	} `cmd:"" help:"Show recent generation cycle history from the journal"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("codegend"),
		kong.Description("Incremental code generation daemon and compiler frontend."),
		kong.Vars{"version": version.Version},
	)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	adapter := cerrors.NewCLIErrorAdapter(CLI.Verbose, logger)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		adapter.Exit(err)
	}

	gate := config.NewFeatureGate()
	gen := generator.Select(gate, cfg, logger)

	switch ctx.Command() {
	case "compile <entry>":
		if err := runCompile(context.Background(), cfg, gen, logger); err != nil {
			adapter.Exit(err)
		}
	case "serve <entry>":
		if err := runServe(context.Background(), cfg, gen, logger); err != nil {
			adapter.Exit(err)
		}
	case "script":
		path, err := gen.WriteBuildScript(context.Background())
		if err != nil {
			adapter.Exit(err)
		}
		logger.Info("build script written", "path", path)
	case "history":
		if err := runHistory(context.Background(), cfg, logger); err != nil {
			adapter.Exit(err)
		}
	default:
		adapter.Exit(cerrors.New(cerrors.CategoryValidation, cerrors.SeverityFatal, "unknown command"))
	}
}
