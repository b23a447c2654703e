package sessions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/masklinn/pytest-sessions/pkg/sessions/observability"
	"github.com/masklinn/pytest-sessions/pkg/sessions/store"
)

// Warning contexts reported by the host. Only execution-phase warnings
// with a concrete node id are recorded.
const (
	WhenConfig  = "config"
	WhenCollect = "collect"
	WhenRuntest = "runtest"
)

// Session is the context of one live test run: the live store, its
// reference binding, and the selectors built on them. It is constructed
// once and drives every persistence side effect of the run; it is not
// safe for concurrent use, matching the host's synchronous callback
// sequence.
type Session struct {
	opts Options
	set  settings

	runID   string
	name    string
	refPath string
	st      *store.Store

	rerun   *rerunSelector
	reorder *reorderSelector
	skipper *skipper

	maxFail  int
	ctx      context.Context
	span     trace.Span
	finished bool
}

// Configure resolves the reference store and builds either a live
// Session or, in show-session mode, a Replayer over the reference.
// Exactly one of the two results is non-nil on success.
func Configure(opts Options, fns ...Option) (*Session, *Replayer, error) {
	set := newSettings(fns)
	if opts.Dir == "" {
		return nil, nil, errors.New("sessions directory not configured")
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create sessions directory: %w", err)
	}

	refPath, err := resolveReference(opts)
	if err != nil {
		return nil, nil, err
	}

	if opts.ShowSession {
		r, err := newReplayer(refPath, set)
		if err != nil {
			return nil, nil, err
		}
		return nil, r, nil
	}

	s, err := newSession(opts, set, refPath)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}

// resolveReference picks the reference store path: the explicit name if
// one was given, otherwise the most recent complete store. A missing
// explicit reference degrades to an empty reference rather than erroring.
func resolveReference(opts Options) (string, error) {
	if opts.Reference != "" {
		path := opts.Reference
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.Dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", nil
		}
		return path, nil
	}
	return store.LatestComplete(opts.Dir)
}

func newSession(opts Options, set settings, refPath string) (*Session, error) {
	name := store.SessionName(time.Now())
	st, err := store.Create(filepath.Join(opts.Dir, name))
	if err != nil {
		return nil, err
	}
	if err := st.AttachReference(refPath); err != nil {
		st.Close()
		return nil, err
	}

	s := &Session{
		opts:    opts,
		set:     set,
		runID:   uuid.New().String(),
		name:    name,
		refPath: refPath,
		st:      st,
	}
	s.ctx, s.span = set.spans.StartSessionSpan(context.Background(), name, s.runID)

	rerun, order, allIfNone, maxFail := opts.effective()
	s.maxFail = maxFail

	categories := store.ParseCategories(rerun)
	if len(categories) > 0 && !categories.Has(store.New) {
		sk, err := newSkipper(st, opts.Root, categories, opts.IsInitPath, set, s.ctx)
		switch {
		case errors.Is(err, ErrNotOptimizable):
			observability.LogSkipperDisabled(set.logger, s.runID, err.Error())
			if allIfNone {
				// nothing matching even exists on disk: the fallback
				// would select everything anyway, so drop the filter
				categories = nil
			}
		case err != nil:
			st.Close()
			return nil, err
		default:
			s.skipper = sk
		}
	}
	s.rerun = &rerunSelector{st: st, categories: categories, allIfNone: allIfNone}

	if ranks := parseRanks(order); ranks != nil {
		s.reorder = &reorderSelector{st: st, root: opts.Root, ranks: ranks}
	}

	observability.LogSessionStart(set.logger, s.runID, name, refPath)
	return s, nil
}

// RunID returns the unique identifier of this run.
func (s *Session) RunID() string { return s.runID }

// Name returns the live store's file name within the sessions directory.
func (s *Session) Name() string { return s.name }

// Path returns the live store's filesystem path.
func (s *Session) Path() string { return s.st.Path() }

// MaxFail returns the stop-after-N-failures threshold implied by the
// stepwise convenience flags, 0 when unlimited. The host enforces it.
func (s *Session) MaxFail() int { return s.maxFail }

// CollectionModifyItems is invoked once collection is complete. It
// records a pending baseline row for every collected node, merges the
// reference into the live store, partitions the items into kept and
// deselected per the requested categories, carries the deselected nodes'
// prior outcomes forward, and reorders the kept items.
func (s *Session) CollectionModifyItems(items []Item) (kept, deselected []Item, err error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.NodeID
	}
	if err := s.st.UpsertPending(ids); err != nil {
		return nil, nil, err
	}

	kept, deselected, carried, err := s.rerun.filter(items)
	if err != nil {
		return nil, nil, err
	}
	if s.reorder != nil {
		if err := s.reorder.sort(kept); err != nil {
			return nil, nil, err
		}
	}

	s.set.metrics.RecordSelection(s.ctx, len(kept), len(deselected))
	observability.LogDeselection(s.set.logger, s.runID, len(kept), len(deselected), carried)
	return kept, deselected, nil
}

// CollectReport records a collection failure or skip. Successful
// collection reports carry no information worth persisting.
func (s *Session) CollectReport(rep CollectReport) error {
	if rep.Outcome != store.Failed && rep.Outcome != store.Skipped {
		return nil
	}
	if err := s.st.RecordCollect(rep.NodeID, rep.Outcome, rep.Blob); err != nil {
		return err
	}
	s.set.metrics.RecordOutcome(s.ctx, string(store.PhaseCollect), string(rep.Outcome))
	return nil
}

// WarningRecorded marks a node's outcome as warnings. Only runtest-phase
// warnings carrying a node id qualify; config and collect warnings are
// not attributable to a single test.
func (s *Session) WarningRecorded(when, nodeID string) error {
	if nodeID == "" || when != WhenRuntest {
		return nil
	}
	return s.st.RecordWarning(nodeID)
}

// TestLogStart records the node's source location as it begins executing.
func (s *Session) TestLogStart(nodeID string, loc Location) error {
	return s.st.RecordLocation(nodeID, loc)
}

// TestLogReport normalizes and records the outcome of one execution
// phase.
func (s *Session) TestLogReport(rep TestReport) error {
	outcome := store.Normalize(rep.Phase, rep.Outcome, rep.WasXFail)
	if err := s.st.RecordPhase(rep.NodeID, rep.Phase, outcome, rep.Blob); err != nil {
		return err
	}
	s.set.metrics.RecordOutcome(s.ctx, string(rep.Phase), string(outcome))
	return nil
}

// BeforeCollect offers the skipper a chance to short-circuit collecting
// a file that provably holds no selected node. A non-nil report replaces
// the host's own collection of that unit.
func (s *Session) BeforeCollect(c Collector) *CollectReport {
	if s.skipper == nil {
		return nil
	}
	return s.skipper.beforeCollect(c)
}

// AfterCollect lets the skipper reorder and prune a freshly produced
// collection report in place.
func (s *Session) AfterCollect(c Collector, rep *CollectReport) {
	if s.skipper == nil {
		return
	}
	s.skipper.afterCollect(c, rep)
}

// SkippedFiles returns how many files the skipper short-circuited, for
// the host's summary line.
func (s *Session) SkippedFiles() int {
	if s.skipper == nil {
		return 0
	}
	return s.skipper.skippedFiles
}

// Finish ends the session. In collect-only, cache-inspection or
// distributed-worker contexts the store is closed as-is and history is
// left untouched. Otherwise pending rows are back-filled from the
// reference, the store is stamped complete and retention is enforced.
func (s *Session) Finish() error {
	if s.finished {
		return nil
	}
	s.finished = true

	if s.opts.CollectOnly || s.opts.CacheShow || s.opts.Worker {
		err := s.st.Close()
		s.set.spans.EndSpanWithError(s.span, err)
		return err
	}

	err := s.finish()
	s.set.spans.EndSpanWithError(s.span, err)
	return err
}

func (s *Session) finish() error {
	if err := s.st.BackfillPending(); err != nil {
		s.st.Close()
		return err
	}
	if err := s.st.MarkComplete(); err != nil {
		s.st.Close()
		return err
	}
	if err := s.st.Close(); err != nil {
		return err
	}

	removed, err := store.Prune(s.opts.Dir, s.opts.Limit)
	if err != nil {
		return err
	}
	s.set.metrics.RecordPruned(s.ctx, removed)
	if n := s.SkippedFiles(); n > 0 {
		observability.LogFilesSkipped(s.set.logger, s.runID, n)
	}
	observability.LogSessionComplete(s.set.logger, s.runID, s.name, removed)
	return nil
}

// Close releases the live store without completing the session, leaving
// a partial record that will never serve as a reference. Used on
// abnormal termination.
func (s *Session) Close() error {
	if s.finished {
		return nil
	}
	s.finished = true
	err := s.st.Close()
	s.set.spans.EndSpanWithError(s.span, err)
	return err
}
