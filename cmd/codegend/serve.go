package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/codegend/internal/compile"
	"git.home.luguber.info/inful/codegend/internal/config"
	cerrors "git.home.luguber.info/inful/codegend/internal/errors"
	"git.home.luguber.info/inful/codegend/internal/eventstore"
	"git.home.luguber.info/inful/codegend/internal/generator"
	"git.home.luguber.info/inful/codegend/internal/metrics"
	"git.home.luguber.info/inful/codegend/internal/notify"
)

// runServe runs the persistent session: generation daemon, resident compiler
// and the watch/recompile loop, plus the optional serve-mode services
// (journal, metrics, NATS fan-out, scheduled rebuilds).
func runServe(ctx context.Context, cfg *config.Config, gen generator.Generator, logger *slog.Logger) error {
	if len(cfg.Compiler.Command) == 0 {
		return cerrors.ConfigRequired("compiler.command")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon, err := gen.Daemon(ctx)
	if err != nil {
		return err
	}

	// Side services subscribe before the first cycle so they observe it.
	if cfg.Journal.Path != "" {
		journal, err := eventstore.NewSQLiteJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()

		projection := eventstore.NewCycleHistoryProjection(journal, 100)
		if err := projection.Rebuild(ctx); err != nil {
			logger.Warn("failed to rebuild cycle history", "error", err)
		}
		recorder := eventstore.NewRecorder(journal, projection, logger)
		recorder.Start(ctx, daemon)
		defer recorder.Stop()
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Serve.MetricsAddr != "" {
		registry := prom.NewRegistry()
		promRecorder := metrics.NewPrometheusRecorder(registry)
		recorder = promRecorder

		observer := metrics.NewCycleObserver(promRecorder)
		observer.Start(ctx, daemon)
		defer observer.Stop()

		server := &http.Server{Addr: cfg.Serve.MetricsAddr, Handler: metrics.HTTPHandler(registry)}
		go func() {
			logger.Info("metrics listening", "addr", cfg.Serve.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Notify.Enabled {
		publisher, err := notify.NewPublisher(cfg.Notify.URL, cfg.Notify.Subject, logger)
		if err != nil {
			return err
		}
		publisher.Start(ctx, daemon)
		defer publisher.Stop()
	}

	// Construct the resident compiler; this runs the initial cycle.
	factory := compile.NewExecSessionFactory(cfg.Compiler.Command, cfg.Compiler.IncrementalSeed, logger)
	resident, err := compile.NewGeneratingResidentCompiler(ctx, gen, cfg.Project,
		compile.ResidentOptions{
			EntryPath:                  CLI.Serve.Entry,
			IncrementalSeed:            cfg.Compiler.IncrementalSeed,
			TrackWidgetCreation:        cfg.Compiler.TrackWidgetCreation,
			UnsafePackageSerialization: cfg.Compiler.UnsafePackageSerialization,
			ExtraOptions:               cfg.Compiler.ExtraOptions,
		}, factory, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := resident.Shutdown(); err != nil {
			logger.Warn("resident session shutdown failed", "error", err)
		}
	}()

	// First compile against the freshly generated sources.
	recompile := func(invalidated []string) {
		status := daemon.LastStatus()
		recorder.IncRecompile(string(status))

		result, err := resident.Recompile(ctx, invalidated, CLI.Serve.Output)
		if err != nil {
			logger.Error("recompile failed", "error", err)
			_ = resident.Reject()
			return
		}
		resident.Accept()
		logger.Info("recompile finished", "output", result.OutputPath, "invalidated", len(invalidated))
	}
	recompile(nil)

	if cfg.Serve.Watch {
		watcher, err := generator.NewSourceWatcher(cfg.Project.Root,
			time.Duration(cfg.Serve.DebounceMillis)*time.Millisecond,
			func(invalidated []string) {
				// Avoid a redundant cycle when one is already running; the
				// recompile below waits out whichever cycle is current.
				if daemon.LastStatus() != generator.StatusStarted {
					daemon.StartBuild()
				} else {
					recorder.IncCoalescedTrigger()
				}
				recompile(invalidated)
			}, logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	if cfg.Serve.RebuildIntervalMinutes > 0 {
		scheduler, err := generator.NewRebuildScheduler(
			time.Duration(cfg.Serve.RebuildIntervalMinutes)*time.Minute,
			func() {
				daemon.StartBuild()
				recompile(nil)
			}, logger)
		if err != nil {
			return err
		}
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Warn("scheduler shutdown failed", "error", err)
			}
		}()
	}

	logger.Info("codegend serving",
		"project", cfg.Project.Root,
		"entry", CLI.Serve.Entry,
		"watch", cfg.Serve.Watch)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
