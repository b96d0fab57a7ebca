package eventstore

import (
	"encoding/json"
	"time"
)

// Event type names as stored in the journal.
const (
	TypeCycleStarted   = "CycleStarted"
	TypeCycleSucceeded = "CycleSucceeded"
	TypeCycleFailed    = "CycleFailed"
)

// startedPayload is the persisted payload of a CycleStarted event.
type startedPayload struct {
	Project string `json:"project"`
	Reason  string `json:"reason,omitempty"` // e.g. "watch", "scheduled", "forced"
}

// terminalPayload is the persisted payload of a terminal cycle event.
type terminalPayload struct {
	Project    string `json:"project"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// StartedPayload marshals a CycleStarted payload.
func StartedPayload(project, reason string) []byte {
	b, _ := json.Marshal(startedPayload{Project: project, Reason: reason})
	return b
}

// TerminalPayload marshals a CycleSucceeded/CycleFailed payload.
func TerminalPayload(project string, duration time.Duration, errMsg string) []byte {
	b, _ := json.Marshal(terminalPayload{
		Project:    project,
		DurationMS: duration.Milliseconds(),
		Error:      errMsg,
	})
	return b
}
