package generator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/codegend/internal/errors"
	"git.home.luguber.info/inful/codegend/internal/events"
	"git.home.luguber.info/inful/codegend/internal/logfields"
)

// Daemon owns the single long-lived generation session for one project root.
//
// It runs generation cycles through its CycleRunner and exposes progress as a
// broadcast stream of StatusEvent values. Cycles are strictly sequential: a
// StartBuild while a cycle is in flight coalesces into the running cycle, so
// a second Started is never published before the prior cycle's terminal
// event.
//
// The daemon is the only writer of its status; compiler wrappers observe and
// branch. There is no timeout at this layer — a hung generation tool hangs
// every waiter until the daemon is closed.
type Daemon struct {
	projectRoot string
	runner      CycleRunner
	logger      *slog.Logger
	stream      *events.Stream[StatusEvent]

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards last/lastCycle/running and is held across stream publishes
	// so state and stream stay consistent and ordered. Subscribers must
	// drain their channels; see Stream.Publish.
	mu        sync.Mutex
	last      BuildStatus
	lastCycle string
	running   bool
}

// DaemonOption customizes a Daemon.
type DaemonOption func(*Daemon)

// WithLogger sets the logger used for cycle diagnostics.
func WithLogger(l *slog.Logger) DaemonOption {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDaemon creates a daemon for the project root. The daemon lives until
// Close; there is no other teardown step.
func NewDaemon(projectRoot string, runner CycleRunner, opts ...DaemonOption) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		projectRoot: projectRoot,
		runner:      runner,
		logger:      slog.Default(),
		stream:      events.NewStream[StatusEvent](),
		ctx:         ctx,
		cancel:      cancel,
		last:        StatusIdle,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProjectRoot returns the project root this daemon is bound to.
func (d *Daemon) ProjectRoot() string {
	return d.projectRoot
}

// LastStatus returns the most recently observed status. Callers use it to
// avoid waiting on the stream when the answer is already known.
func (d *Daemon) LastStatus() BuildStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// BuildResults subscribes to the daemon's status stream. The stream has
// replay-none semantics: the subscriber sees events from this point onward
// and reads LastStatus for anything earlier. The returned cancel must be
// called when the subscriber is done.
func (d *Daemon) BuildResults(buffer int) (<-chan StatusEvent, func()) {
	return d.stream.Subscribe(buffer)
}

// StartBuild triggers a generation cycle. If a cycle is already in flight
// the call coalesces into it and no second Started event is published.
// Callers that do not want to force a cycle should check LastStatus first.
func (d *Daemon) StartBuild() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.logger.Debug("generation cycle already in flight, coalescing trigger",
			logfields.Project(d.projectRoot))
		return
	}

	cycleID := uuid.NewString()
	d.running = true
	d.last = StatusStarted
	d.lastCycle = cycleID
	d.publishLocked(StatusEvent{CycleID: cycleID, Status: StatusStarted, At: time.Now()})
	d.mu.Unlock()

	go d.runCycle(cycleID)
}

func (d *Daemon) runCycle(cycleID string) {
	start := time.Now()
	d.logger.Info("generation cycle started",
		logfields.Project(d.projectRoot), logfields.CycleID(cycleID))

	err := d.runner.RunCycle(d.ctx, d.projectRoot)

	status := StatusSucceeded
	if err != nil {
		status = StatusFailed
	}

	d.mu.Lock()
	d.last = status
	d.running = false
	d.publishLocked(StatusEvent{CycleID: cycleID, Status: status, Err: err, At: time.Now()})
	d.mu.Unlock()

	if err != nil {
		// A failed cycle is a status event, not a daemon failure. Only the
		// caller that started the build decides whether failure is fatal.
		d.logger.Warn("generation cycle failed",
			logfields.Project(d.projectRoot),
			logfields.CycleID(cycleID),
			logfields.DurationMS(float64(time.Since(start).Milliseconds())),
			logfields.Error(err))
		return
	}
	d.logger.Info("generation cycle succeeded",
		logfields.Project(d.projectRoot),
		logfields.CycleID(cycleID),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}

func (d *Daemon) publishLocked(ev StatusEvent) {
	if err := d.stream.Publish(d.ctx, ev); err != nil {
		d.logger.Debug("status publish dropped",
			logfields.Status(string(ev.Status)), logfields.Error(err))
	}
}

// WaitForTerminal blocks until the current cycle reaches a terminal status.
// If LastStatus is already terminal it returns immediately without waiting
// on the stream. With LastStatus Idle it waits for a cycle someone else
// triggers.
func (d *Daemon) WaitForTerminal(ctx context.Context) (BuildStatus, error) {
	ch, cancel := d.BuildResults(4)
	defer cancel()

	// Subscribe-before-check: a terminal event published between the check
	// and the subscription would otherwise be lost.
	if st := d.LastStatus(); st.Terminal() {
		return st, nil
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return "", errors.DaemonError("generation daemon closed while waiting for build result")
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

// Close tears the daemon down: in-flight runner invocations are canceled and
// all subscriber channels are closed.
func (d *Daemon) Close() {
	d.cancel()
	d.stream.Close()
}
