package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Cycle status values in the history read model.
const (
	cycleRunning   = "running"
	cycleSucceeded = "succeeded"
	cycleFailed    = "failed"
)

// CycleSummary is a read model summarizing one generation cycle.
type CycleSummary struct {
	CycleID     string        `json:"cycle_id"`
	Project     string        `json:"project"`
	Status      string        `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// CycleHistoryProjection maintains an in-memory view of cycle history,
// reconstructed from the journal.
type CycleHistoryProjection struct {
	mu      sync.RWMutex
	journal Journal
	cycles  map[string]*CycleSummary
	history []*CycleSummary // newest first
	maxSize int
}

// NewCycleHistoryProjection creates a projection backed by the given journal.
func NewCycleHistoryProjection(journal Journal, maxHistorySize int) *CycleHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &CycleHistoryProjection{
		journal: journal,
		cycles:  make(map[string]*CycleSummary),
		history: make([]*CycleSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all journal events. Typically
// called at startup.
func (p *CycleHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.journal.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cycles = make(map[string]*CycleSummary)
	p.history = p.history[:0]
	for i := range events {
		p.applyLocked(events[i])
	}
	p.sortAndTrimLocked()
	return nil
}

// Apply folds one event into the projection.
func (p *CycleHistoryProjection) Apply(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(ev)
	p.sortAndTrimLocked()
}

func (p *CycleHistoryProjection) applyLocked(ev Event) {
	switch ev.Type {
	case TypeCycleStarted:
		var payload startedPayload
		_ = json.Unmarshal(ev.Payload, &payload)
		s := &CycleSummary{
			CycleID:   ev.CycleID,
			Project:   payload.Project,
			Reason:    payload.Reason,
			Status:    cycleRunning,
			StartedAt: ev.Timestamp,
		}
		p.cycles[ev.CycleID] = s
		p.history = append(p.history, s)

	case TypeCycleSucceeded, TypeCycleFailed:
		s, ok := p.cycles[ev.CycleID]
		if !ok {
			// Terminal without a recorded start; synthesize so history stays queryable.
			s = &CycleSummary{CycleID: ev.CycleID, StartedAt: ev.Timestamp}
			p.cycles[ev.CycleID] = s
			p.history = append(p.history, s)
		}
		var payload terminalPayload
		_ = json.Unmarshal(ev.Payload, &payload)
		completed := ev.Timestamp
		s.CompletedAt = &completed
		s.Duration = time.Duration(payload.DurationMS) * time.Millisecond
		if s.Project == "" {
			s.Project = payload.Project
		}
		if ev.Type == TypeCycleFailed {
			s.Status = cycleFailed
			s.Error = payload.Error
		} else {
			s.Status = cycleSucceeded
		}
	}
}

func (p *CycleHistoryProjection) sortAndTrimLocked() {
	sort.Slice(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		for _, s := range p.history[p.maxSize:] {
			delete(p.cycles, s.CycleID)
		}
		p.history = p.history[:p.maxSize]
	}
}

// Get returns the summary for one cycle.
func (p *CycleHistoryProjection) Get(cycleID string) (*CycleSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.cycles[cycleID]
	if !ok {
		return nil, false
	}
	copied := *s
	return &copied, true
}

// Recent returns up to n summaries, newest first.
func (p *CycleHistoryProjection) Recent(n int) []CycleSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n <= 0 || n > len(p.history) {
		n = len(p.history)
	}
	out := make([]CycleSummary, 0, n)
	for _, s := range p.history[:n] {
		out = append(out, *s)
	}
	return out
}
