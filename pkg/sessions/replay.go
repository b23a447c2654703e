package sessions

import (
	"context"
	"fmt"

	"github.com/masklinn/pytest-sessions/pkg/sessions/observability"
	"github.com/masklinn/pytest-sessions/pkg/sessions/store"
)

// CollectionInterruptedError reports that a replayed session had
// collection failures, which interrupted the original run before any
// test executed.
type CollectionInterruptedError struct {
	Failures int
}

func (e *CollectionInterruptedError) Error() string {
	if e.Failures == 1 {
		return "1 error during collection"
	}
	return fmt.Sprintf("%d errors during collection", e.Failures)
}

// Replayer re-emits the persisted report stream of a reference session
// instead of running tests.
type Replayer struct {
	path string
	st   *store.Store
	set  settings
}

// newReplayer opens the reference store for replay. An empty path means
// no reference exists; the replay is then empty rather than an error.
func newReplayer(path string, set settings) (*Replayer, error) {
	r := &Replayer{path: path, set: set}
	if path == "" {
		return r, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	r.st = st
	return r, nil
}

// Path returns the replayed store's filesystem path, empty when no
// reference was found.
func (r *Replayer) Path() string { return r.path }

// Replay feeds the persisted reports to rep in the order a live run
// would have produced them: collection reports first, then per-test
// start, phase and finish events. It returns the number of tests the
// original session executed. If the original collection failed, replay
// stops there and returns a CollectionInterruptedError, matching the
// original run's interruption.
func (r *Replayer) Replay(rep Reporter) (int, error) {
	if r.st == nil {
		observability.LogReplayStart(r.set.logger, r.path, 0)
		return 0, nil
	}
	defer r.st.Close()

	_, span := r.set.spans.StartReplaySpan(context.Background(), r.path)
	n, err := r.replay(rep)
	r.set.spans.EndSpanWithError(span, err)
	return n, err
}

func (r *Replayer) replay(rep Reporter) (int, error) {
	collects, err := r.st.CollectRecords()
	if err != nil {
		return 0, err
	}
	failures := 0
	for _, rec := range collects {
		if rec.Outcome == store.Failed {
			failures++
		}
		rep.CollectReport(rec.NodeID, rec.Outcome, rec.Collect)
	}

	executed, err := r.st.CountExecuted()
	if err != nil {
		return 0, err
	}
	observability.LogReplayStart(r.set.logger, r.path, executed)
	if failures > 0 {
		return executed, &CollectionInterruptedError{Failures: failures}
	}

	tests, err := r.st.TestRecords()
	if err != nil {
		return executed, err
	}
	for _, rec := range tests {
		var loc Location
		if rec.Location != nil {
			loc = *rec.Location
		}
		rep.TestLogStart(rec.NodeID, loc)
		for _, ph := range []struct {
			phase store.Phase
			blob  []byte
		}{
			{store.PhaseSetup, rec.Setup},
			{store.PhaseCall, rec.Call},
			{store.PhaseTeardown, rec.Teardown},
		} {
			if ph.blob != nil {
				rep.PhaseReport(rec.NodeID, ph.phase, ph.blob)
			}
		}
		rep.TestLogFinish(rec.NodeID, loc)
	}
	return executed, nil
}
