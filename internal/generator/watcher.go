package generator

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/codegend/internal/errors"
)

// SourceWatcher monitors a project source tree and reports debounced batches
// of changed files. It powers the edit/recompile loop: the serve command
// turns each batch into a StartBuild trigger plus a resident recompile of
// the invalidated files.
type SourceWatcher struct {
	root     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onBatch  func(invalidated []string)
	logger   *slog.Logger
	stopChan chan struct{}
}

// NewSourceWatcher watches root (recursively) and calls onBatch with each
// debounced set of changed files.
func NewSourceWatcher(root string, debounce time.Duration, onBatch func([]string), logger *slog.Logger) (*SourceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "create file watcher")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		_ = w.Close()
		return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "resolve watch root")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceWatcher{
		root:     abs,
		watcher:  w,
		debounce: debounce,
		onBatch:  onBatch,
		logger:   logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Start registers the directory tree and begins delivering batches until the
// context is canceled or Stop is called.
func (sw *SourceWatcher) Start(ctx context.Context) error {
	if err := sw.addTree(sw.root); err != nil {
		return err
	}
	sw.logger.Info("watching project sources", "root", sw.root, "debounce", sw.debounce)
	go sw.loop(ctx)
	return nil
}

// Stop ends watching. Safe to call once.
func (sw *SourceWatcher) Stop() {
	close(sw.stopChan)
	_ = sw.watcher.Close()
}

func (sw *SourceWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := sw.watcher.Add(path); err != nil {
			return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError, "watch directory").
				WithContext("path", path)
		}
		return nil
	})
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "build" || name == "node_modules"
}

func (sw *SourceWatcher) loop(ctx context.Context) {
	var (
		pending = make(map[string]struct{})
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]string, 0, len(pending))
		for p := range pending {
			batch = append(batch, p)
		}
		pending = make(map[string]struct{})
		sw.logger.Debug("source change batch", "files", len(batch))
		sw.onBatch(batch)
	}

	for {
		select {
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				flush()
				return
			}
			if !relevantOp(ev.Op) {
				continue
			}
			// New directories join the watch set so nested edits are seen.
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := sw.addTree(ev.Name); err != nil {
						sw.logger.Warn("watch new directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(sw.debounce)
			} else {
				timer.Reset(sw.debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			flush()

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warn("file watcher error", "error", err)

		case <-sw.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func relevantOp(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) ||
		op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}
