package store

import "strings"

// Outcome classifies the recorded state of one test node.
// The persisted set is closed; New is a virtual value computed for node
// ids with no matching record in the reference store and is never written
// to storage.
type Outcome string

const (
	Pending  Outcome = "pending"
	Skipped  Outcome = "skipped"
	XFailed  Outcome = "xfailed"
	XPassed  Outcome = "xpassed"
	Warnings Outcome = "warnings"
	Error    Outcome = "error"
	Failed   Outcome = "failed"
	Passed   Outcome = "passed"

	// New only exists relative to a reference store.
	New Outcome = "new"
)

// Phase identifies which part of the run protocol produced a report.
type Phase string

const (
	PhaseCollect  Phase = "collect"
	PhaseSetup    Phase = "setup"
	PhaseCall     Phase = "call"
	PhaseTeardown Phase = "teardown"
)

// runPhase reports whether p is one of the per-test execution phases,
// which are the only phases with a dedicated blob column.
func (p Phase) runPhase() bool {
	return p == PhaseSetup || p == PhaseCall || p == PhaseTeardown
}

// Normalize maps a raw phase outcome to the stored taxonomy:
//
//   - an expected failure reports as xfailed when the phase skipped,
//     otherwise as x-prefixed raw outcome (xpassed in practice)
//   - a plain skip stays skipped
//   - a failure outside the call phase is an error, only a call-phase
//     failure is a true failed
func Normalize(phase Phase, outcome Outcome, wasXFail bool) Outcome {
	switch {
	case wasXFail && outcome == Skipped:
		return XFailed
	case wasXFail:
		return Outcome("x" + string(outcome))
	case outcome == Skipped:
		return Skipped
	case outcome == Failed && phase != PhaseCall:
		return Error
	}
	return outcome
}

// CategorySet is a set of outcome categories requested for rerun or
// reorder selection. New is a valid member here even though it is never
// stored.
type CategorySet map[Outcome]struct{}

// ParseCategories splits a comma-separated category list, trimming
// whitespace and dropping empty tags. Returns nil when no tag remains.
// Unknown tags are kept as-is: they simply never match a stored outcome.
func ParseCategories(s string) CategorySet {
	var set CategorySet
	for _, tag := range strings.Split(s, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if set == nil {
			set = make(CategorySet)
		}
		set[Outcome(tag)] = struct{}{}
	}
	return set
}

// Has reports whether o is a member of the set.
func (c CategorySet) Has(o Outcome) bool {
	_, ok := c[o]
	return ok
}
