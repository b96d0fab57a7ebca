package eventstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/codegend/internal/generator"
)

// Recorder subscribes to a daemon's status stream and journals every cycle
// transition, keeping the projection current. Journal failures are logged and
// never interrupt the generation pipeline.
type Recorder struct {
	journal    Journal
	projection *CycleHistoryProjection
	logger     *slog.Logger

	mu      sync.Mutex
	started map[string]time.Time // cycleID -> Started timestamp
	cancel  func()
	done    chan struct{}
}

// NewRecorder creates a recorder writing to journal and updating projection
// (projection may be nil).
func NewRecorder(journal Journal, projection *CycleHistoryProjection, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		journal:    journal,
		projection: projection,
		logger:     logger,
		started:    make(map[string]time.Time),
	}
}

// Start subscribes to the daemon and records until the stream closes or the
// context is canceled.
func (r *Recorder) Start(ctx context.Context, daemon *generator.Daemon) {
	ch, cancel := daemon.BuildResults(16)
	r.cancel = cancel
	r.done = make(chan struct{})
	project := daemon.ProjectRoot()

	go func() {
		defer close(r.done)
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				r.record(ctx, project, ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes and waits for the recording loop to drain.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

func (r *Recorder) record(ctx context.Context, project string, ev generator.StatusEvent) {
	var (
		eventType string
		payload   []byte
	)

	switch ev.Status {
	case generator.StatusStarted:
		r.mu.Lock()
		r.started[ev.CycleID] = ev.At
		r.mu.Unlock()
		eventType = TypeCycleStarted
		payload = StartedPayload(project, "")

	case generator.StatusSucceeded, generator.StatusFailed:
		r.mu.Lock()
		startedAt, ok := r.started[ev.CycleID]
		delete(r.started, ev.CycleID)
		r.mu.Unlock()

		var duration time.Duration
		if ok {
			duration = ev.At.Sub(startedAt)
		}
		errMsg := ""
		if ev.Err != nil {
			errMsg = ev.Err.Error()
		}
		if ev.Status == generator.StatusFailed {
			eventType = TypeCycleFailed
		} else {
			eventType = TypeCycleSucceeded
		}
		payload = TerminalPayload(project, duration, errMsg)

	default:
		return
	}

	if err := r.journal.Append(ctx, ev.CycleID, eventType, payload, nil); err != nil {
		r.logger.Warn("failed to journal cycle event",
			"cycle_id", ev.CycleID, "type", eventType, "error", err)
		return
	}
	if r.projection != nil {
		r.projection.Apply(Event{
			CycleID:   ev.CycleID,
			Type:      eventType,
			Timestamp: ev.At,
			Payload:   payload,
		})
	}
}
