package sessions

import "github.com/masklinn/pytest-sessions/pkg/sessions/store"

// Item is one selectable test case presented by the host runner's
// collection.
type Item struct {
	// NodeID is the hierarchical identifier of the test case.
	NodeID string
	// Path is the filesystem path of the file the case was collected
	// from, absolute or relative to the session root.
	Path string
}

// CollectorKind distinguishes the collection tree levels the skipper
// treats differently.
type CollectorKind int

const (
	// CollectorRoot is the top-level collection unit of the run.
	CollectorRoot CollectorKind = iota
	// CollectorDir is a directory-level collection unit.
	CollectorDir
	// CollectorFile is a file-level collection unit; only files are ever
	// short-circuited.
	CollectorFile
)

// Collector describes a collection unit the host is about to produce a
// report for.
type Collector struct {
	Kind   CollectorKind
	NodeID string
	Path   string
}

// CollectNode is one entry in a collector's result: either a collected
// test case or a nested sub-collector.
type CollectNode struct {
	NodeID      string
	Path        string
	IsCollector bool
}

// CollectReport is the host's report for one collection unit.
type CollectReport struct {
	NodeID  string
	Outcome store.Outcome
	// Blob is the host's own serialized report, opaque to this core.
	Blob []byte
	// Result lists the children produced by collecting the unit.
	Result []CollectNode
}

// TestReport is the host's report for one execution phase of one test.
type TestReport struct {
	NodeID  string
	Phase   store.Phase
	Outcome store.Outcome
	// WasXFail flags a report produced under an expected-failure marker.
	WasXFail bool
	// Blob is the host's own serialized report, opaque to this core.
	Blob []byte
}

// Location is the source position of a test, reported when it starts.
type Location = store.Location

// Reporter consumes replayed report events. A replayed session emits the
// same sequence of collection and phase events a live run would have
// produced, reconstructed from the persisted blobs.
type Reporter interface {
	CollectReport(nodeID string, outcome store.Outcome, blob []byte)
	TestLogStart(nodeID string, loc Location)
	PhaseReport(nodeID string, phase store.Phase, blob []byte)
	TestLogFinish(nodeID string, loc Location)
}
