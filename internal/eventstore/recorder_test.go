package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/codegend/internal/generator"
)

type scriptedRunner struct {
	outcomes []error
}

func (r *scriptedRunner) RunCycle(ctx context.Context, projectRoot string) error {
	if len(r.outcomes) == 0 {
		return nil
	}
	out := r.outcomes[0]
	r.outcomes = r.outcomes[1:]
	return out
}

func TestRecorder_JournalsCycleTransitions(t *testing.T) {
	j := newTestJournal(t)
	p := NewCycleHistoryProjection(j, 10)
	rec := NewRecorder(j, p, nil)

	d := generator.NewDaemon("/srv/app", &scriptedRunner{outcomes: []error{nil, errors.New("tool exit 1")}})
	defer d.Close()

	ctx := context.Background()
	rec.Start(ctx, d)

	d.StartBuild()
	waitTerminal(t, d)
	d.StartBuild()
	waitTerminal(t, d)

	rec.Stop()

	events, err := j.GetRange(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 4)
	require.Equal(t, TypeCycleStarted, events[0].Type)
	require.Equal(t, TypeCycleSucceeded, events[1].Type)
	require.Equal(t, TypeCycleStarted, events[2].Type)
	require.Equal(t, TypeCycleFailed, events[3].Type)

	recent := p.Recent(10)
	require.Len(t, recent, 2)
	require.Equal(t, cycleFailed, recent[0].Status)
	require.Equal(t, "/srv/app", recent[0].Project)
}

func waitTerminal(t *testing.T, d *generator.Daemon) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !d.LastStatus().Terminal() {
		if time.Now().After(deadline) {
			t.Fatal("cycle did not reach a terminal status")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
