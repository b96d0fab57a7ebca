// Package metrics provides observability hooks for the generation pipeline.
package metrics

import "time"

// Recorder defines observability hooks for generation cycles and compile
// calls. Implementations may forward to Prometheus or stay no-op when
// metrics are not configured.
type Recorder interface {
	ObserveCycleDuration(outcome string, d time.Duration)
	IncCycleOutcome(outcome string) // outcome: succeeded|failed
	IncRecompile(status string)     // generation status observed at recompile time
	IncCoalescedTrigger()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCycleDuration(string, time.Duration) {}
func (NoopRecorder) IncCycleOutcome(string)                     {}
func (NoopRecorder) IncRecompile(string)                        {}
func (NoopRecorder) IncCoalescedTrigger()                       {}
