package metrics

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/codegend/internal/generator"
)

// CycleObserver subscribes to a daemon's status stream and records cycle
// outcomes and durations.
type CycleObserver struct {
	rec Recorder

	mu      sync.Mutex
	started map[string]time.Time
	cancel  func()
	done    chan struct{}
}

// NewCycleObserver creates an observer forwarding to rec.
func NewCycleObserver(rec Recorder) *CycleObserver {
	if rec == nil {
		rec = NoopRecorder{}
	}
	return &CycleObserver{
		rec:     rec,
		started: make(map[string]time.Time),
	}
}

// Start subscribes to the daemon and observes until the stream closes or the
// context is canceled.
func (o *CycleObserver) Start(ctx context.Context, daemon *generator.Daemon) {
	ch, cancel := daemon.BuildResults(16)
	o.cancel = cancel
	o.done = make(chan struct{})

	go func() {
		defer close(o.done)
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				o.observe(ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes and waits for the observer loop to drain.
func (o *CycleObserver) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	if o.done != nil {
		<-o.done
	}
}

func (o *CycleObserver) observe(ev generator.StatusEvent) {
	switch ev.Status {
	case generator.StatusStarted:
		o.mu.Lock()
		o.started[ev.CycleID] = ev.At
		o.mu.Unlock()

	case generator.StatusSucceeded, generator.StatusFailed:
		o.mu.Lock()
		startedAt, ok := o.started[ev.CycleID]
		delete(o.started, ev.CycleID)
		o.mu.Unlock()

		outcome := "succeeded"
		if ev.Status == generator.StatusFailed {
			outcome = "failed"
		}
		o.rec.IncCycleOutcome(outcome)
		if ok {
			o.rec.ObserveCycleDuration(outcome, ev.At.Sub(startedAt))
		}
	}
}
