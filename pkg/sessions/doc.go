/*
Package sessions persists complete per-test outcome records across test
runs and drives selection, ordering and replay from that history.

# Overview

Each run writes its own session store, a single SQLite file in a
managed directory. The newest complete store becomes the reference for
the next run: it classifies every collected test by its last known
outcome, so a run can be restricted to specific categories (rerun only
failures, only new tests, and so on), reordered by category priority,
or replayed report-by-report without executing anything.

The package is a host-agnostic core: a test runner integrates it by
calling the Session hooks at the matching points of its own lifecycle.

# Basic Usage

Configure a session, feed it the run's events, and finish it:

	opts := sessions.Options{
	    Dir:   ".sessions",
	    Root:  "/repo",
	    Rerun: "failed,error",
	}
	s, _, err := sessions.Configure(opts)
	if err != nil {
	    log.Fatal(err)
	}
	defer s.Close()

	kept, deselected, err := s.CollectionModifyItems(collected)
	// ... run kept, reporting each phase:
	//   s.TestLogStart(nodeID, loc)
	//   s.TestLogReport(sessions.TestReport{...})
	// ...
	err = s.Finish()

# Replay

With Options.ShowSession set, Configure returns a Replayer instead of a
Session. Replay feeds the stored reports to a Reporter in the order the
original run produced them:

	_, r, err := sessions.Configure(sessions.Options{
	    Dir:         ".sessions",
	    ShowSession: true,
	})
	if err != nil {
	    log.Fatal(err)
	}
	executed, err := r.Replay(reporter)

# Retention

Completed stores accumulate in Options.Dir up to Options.Limit; the
oldest are removed when a session finishes. Interrupted runs leave a
partial store behind that is never selected as a reference but still
counts against the limit until evicted.
*/
package sessions
