package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/codegend/internal/config"
	cerrors "git.home.luguber.info/inful/codegend/internal/errors"
	"git.home.luguber.info/inful/codegend/internal/eventstore"
)

// runHistory prints recent generation cycles from the journal as JSON.
func runHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Journal.Path == "" || cfg.Journal.Path == ":memory:" {
		return cerrors.New(cerrors.CategoryConfig, cerrors.SeverityFatal,
			"cycle history requires a persistent journal").
			WithContext("field", "journal.path")
	}

	journal, err := eventstore.NewSQLiteJournal(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	projection := eventstore.NewCycleHistoryProjection(journal, CLI.History.Limit)
	if err := projection.Rebuild(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(projection.Recent(CLI.History.Limit))
}
