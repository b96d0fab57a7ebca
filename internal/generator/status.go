package generator

import "time"

// BuildStatus represents the state of one generation cycle.
//
// The daemon produces statuses per cycle in the order
// Started -> (Succeeded | Failed); Succeeded and Failed are terminal.
type BuildStatus string

const (
	// StatusIdle is the state before the first cycle of a daemon's lifetime.
	// The daemon never publishes it; it is only ever observed via LastStatus.
	StatusIdle BuildStatus = "idle"

	StatusStarted   BuildStatus = "started"
	StatusSucceeded BuildStatus = "succeeded"
	StatusFailed    BuildStatus = "failed"
)

// Terminal reports whether the status closes a generation cycle.
func (s BuildStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// StatusEvent is one entry in a daemon's broadcast stream.
type StatusEvent struct {
	// CycleID identifies the generation cycle the event belongs to.
	CycleID string
	Status  BuildStatus
	// Err carries the tool failure for StatusFailed events; informational
	// only, failure propagation happens through the status itself.
	Err error
	At  time.Time
}
