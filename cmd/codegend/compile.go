package main

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/codegend/internal/compile"
	"git.home.luguber.info/inful/codegend/internal/config"
	cerrors "git.home.luguber.info/inful/codegend/internal/errors"
	"git.home.luguber.info/inful/codegend/internal/generator"
)

// runCompile performs the one-shot path: force a fresh generation cycle and
// compile the entry point once.
func runCompile(ctx context.Context, cfg *config.Config, gen generator.Generator, logger *slog.Logger) error {
	if len(cfg.Compiler.Command) == 0 {
		return cerrors.ConfigRequired("compiler.command")
	}

	underlying := compile.NewExecCompiler(cfg.Compiler.Command, logger)
	compiler := compile.NewGeneratingCompiler(gen, cfg.Project, underlying, logger)

	result, err := compiler.Compile(ctx, compile.CompileRequest{
		EntryPath:           CLI.Compile.Entry,
		OutputPath:          CLI.Compile.Output,
		AOT:                 CLI.Compile.AOT,
		TrackWidgetCreation: cfg.Compiler.TrackWidgetCreation,
		ExtraOptions:        cfg.Compiler.ExtraOptions,
	})
	if err != nil {
		return err
	}

	logger.Info("compile finished",
		"entry", CLI.Compile.Entry,
		"output", result.OutputPath,
		"errors", result.ErrorCount)
	return nil
}
