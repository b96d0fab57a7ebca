package errors

import (
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for
// the codegend command line.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if ce, ok := AsCodegend(err); ok {
		return a.exitCodeFromCodegend(ce)
	}
	return 1
}

func (a *CLIErrorAdapter) exitCodeFromCodegend(err *CodegendError) int {
	switch err.Category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryGenerate:
		return 9 // Generation pipeline error
	case CategoryCompile, CategoryFileSystem:
		return 11 // Compile error
	case CategoryDaemon, CategoryRuntime, CategoryStorage:
		return 12 // Runtime error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// Report logs the error with severity-appropriate level and a human-readable
// message, not a raw stack trace.
func (a *CLIErrorAdapter) Report(err error) {
	if err == nil {
		return
	}

	ce, ok := AsCodegend(err)
	if !ok {
		a.logger.Error("command failed", "error", err)
		return
	}

	attrs := []any{"category", string(ce.Category)}
	for k, v := range ce.Context {
		attrs = append(attrs, k, v)
	}
	if a.verbose && ce.Cause != nil {
		attrs = append(attrs, "cause", ce.Cause.Error())
	}

	switch ce.Severity {
	case SeverityWarning:
		a.logger.Warn(ce.Message, attrs...)
	case SeverityInfo:
		a.logger.Info(ce.Message, attrs...)
	default:
		a.logger.Error(ce.Message, attrs...)
	}
}

// Exit reports the error and terminates the process with the mapped exit code.
func (a *CLIErrorAdapter) Exit(err error) {
	if err == nil {
		return
	}
	a.Report(err)
	if a.verbose {
		fmt.Fprintf(os.Stderr, "exit code: %d\n", a.ExitCodeFor(err))
	}
	os.Exit(a.ExitCodeFor(err))
}
