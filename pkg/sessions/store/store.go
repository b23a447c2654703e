// Package store persists per-node outcome records for test sessions.
//
// Each session is one SQLite database holding a single items table, one
// row per collected node id, with per-phase report blobs. A store moves
// through numbered phases tracked in the database's user_version pragma;
// only a store carrying the terminal stamp may serve as the reference of
// a later session.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Version stamps, advanced monotonically through the session lifecycle.
const (
	StampCreated    = 1 // schema installed
	StampCollected  = 2 // collected node set recorded
	StampExecuting  = 3 // first test began executing
	StampBackfilled = 4 // pending rows back-filled from the reference
	StampComplete   = 5 // terminal; store may serve as a future reference
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the node id has no record.
	ErrNotFound = errors.New("node record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("session store closed")
)

// Location is the source position of a test node, recorded once the node
// starts executing.
type Location struct {
	Filename string
	Line     int
	TestName string
}

// Record is one row of the items table.
type Record struct {
	NodeID  string
	Outcome Outcome

	// Serialized phase reports, nil when the phase did not run.
	Collect  []byte
	Setup    []byte
	Call     []byte
	Teardown []byte

	// Location is nil until execution of the node began.
	Location *Location
}

// Store is a single session database, optionally with a read-only
// reference database attached.
type Store struct {
	db     *sql.DB
	path   string
	hasRef bool
	closed bool
}

func open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// ATTACH is per-connection state: pin the pool to one connection so
	// the reference schema stays visible across calls.
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path}, nil
}

// Create establishes a fresh session store at path and installs the
// schema, leaving the store at StampCreated.
func Create(path string) (*Store, error) {
	s, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(s.db, "main"); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

// Open opens an existing session store for reading or resumed mutation.
func Open(path string) (*Store, error) {
	return open(path)
}

// OpenMemory opens a fresh in-memory store, mostly useful in tests.
func OpenMemory() (*Store, error) {
	return Create(":memory:")
}

// initSchema creates the items table in the named database schema.
// The outcome CHECK and the unique nodeid index are load-bearing: a
// violation of either indicates a core invariant breach and is left to
// surface as a fatal driver error.
func initSchema(db *sql.DB, schema string) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s.items (
			nodeid text NOT NULL,
			outcome text NOT NULL CHECK (
				outcome IN (
					'pending',
					'skipped',
					'xfailed',
					'xpassed',
					'warnings',
					'error',
					'failed',
					'passed'
				)
			),

			collect text,
			setup text,
			call text,
			teardown text,

			-- filename could be derived from nodeid but lineno cannot be
			-- reconstructed and testname is missing for non-native test
			-- files, so the location is stored outright
			filename text,
			lineno integer,
			testname text
		) STRICT`, schema),
		fmt.Sprintf("CREATE UNIQUE INDEX %s.items_nodeid_idx ON items (nodeid)", schema),
		fmt.Sprintf("CREATE INDEX %s.items_outcome_idx ON items (outcome)", schema),
		fmt.Sprintf("PRAGMA %s.user_version = %d", schema, StampCreated),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Path returns the filesystem path the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Stamp returns the store's current version stamp.
func (s *Store) Stamp() (int, error) {
	if s.closed {
		return 0, ErrStoreClosed
	}
	var v int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read version stamp: %w", err)
	}
	return v, nil
}

// advance raises the version stamp to at least stamp. Stamps never move
// backwards.
func (s *Store) advance(stamp int) error {
	cur, err := s.Stamp()
	if err != nil {
		return err
	}
	if cur >= stamp {
		return nil
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", stamp)); err != nil {
		return fmt.Errorf("advance version stamp: %w", err)
	}
	return nil
}

// UpsertPending inserts one pending record per node id, ignoring ids that
// already have a row, and advances the store to StampCollected.
func (s *Store) UpsertPending(nodeIDs []string) error {
	if s.closed {
		return ErrStoreClosed
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("insert pending items: %w", err)
	}
	stmt, err := tx.Prepare(
		"INSERT INTO items (nodeid, outcome) VALUES (?, 'pending') ON CONFLICT DO NOTHING",
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert pending items: %w", err)
	}
	for _, id := range nodeIDs {
		if _, err := stmt.Exec(id); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert pending item %q: %w", id, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert pending items: %w", err)
	}
	return s.advance(StampCollected)
}

// RecordCollect inserts or replaces the collection outcome of a node.
// Collection only ever fails or is skipped; both outcome and blob are
// overwritten unconditionally so the call is idempotent per node id.
func (s *Store) RecordCollect(nodeID string, outcome Outcome, blob []byte) error {
	if s.closed {
		return ErrStoreClosed
	}
	if outcome != Failed && outcome != Skipped {
		return fmt.Errorf("collect outcome must be failed or skipped, got %q", outcome)
	}
	_, err := s.db.Exec(`
		INSERT INTO items (nodeid, outcome, collect)
		VALUES (?, ?, ?)
		ON CONFLICT
		DO UPDATE SET outcome = excluded.outcome, collect = excluded.collect
	`, nodeID, string(outcome), textBlob(blob))
	if err != nil {
		return fmt.Errorf("record collect outcome: %w", err)
	}
	return nil
}

// RecordWarning marks a node's outcome as warnings, overwriting whatever
// outcome was stored. Filtering to execution-phase warnings is the
// caller's concern.
func (s *Store) RecordWarning(nodeID string) error {
	if s.closed {
		return ErrStoreClosed
	}
	_, err := s.db.Exec("UPDATE items SET outcome = 'warnings' WHERE nodeid = ?", nodeID)
	if err != nil {
		return fmt.Errorf("record warning: %w", err)
	}
	return nil
}

// RecordLocation stores the source location of a node as execution
// begins, and advances the store to StampExecuting.
func (s *Store) RecordLocation(nodeID string, loc Location) error {
	if s.closed {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(
		"UPDATE items SET filename = ?, lineno = ?, testname = ? WHERE nodeid = ?",
		loc.Filename, loc.Line, loc.TestName, nodeID,
	)
	if err != nil {
		return fmt.Errorf("record location: %w", err)
	}
	return s.advance(StampExecuting)
}

// RecordPhase stores the serialized report of one execution phase and
// merges its normalized outcome into the node's top-level outcome.
//
// The ordering rule is load-bearing: the top-level outcome is only
// overwritten while the stored value is pending or passed, so a real
// failure from an earlier phase cannot be papered over by a later
// phase's passed, while a later phase's failure still wins over passed.
func (s *Store) RecordPhase(nodeID string, phase Phase, outcome Outcome, blob []byte) error {
	if s.closed {
		return ErrStoreClosed
	}
	if !phase.runPhase() {
		return fmt.Errorf("phase must be setup, call or teardown, got %q", phase)
	}
	_, err := s.db.Exec(
		"UPDATE items SET outcome = ? WHERE nodeid = ? AND outcome IN ('pending', 'passed')",
		string(outcome), nodeID,
	)
	if err != nil {
		return fmt.Errorf("record phase outcome: %w", err)
	}
	// phase is one of the three column names validated above
	_, err = s.db.Exec(
		fmt.Sprintf("UPDATE items SET %s = ? WHERE nodeid = ?", phase),
		textBlob(blob), nodeID,
	)
	if err != nil {
		return fmt.Errorf("record phase report: %w", err)
	}
	return nil
}

// MarkComplete stamps the store terminal after refreshing the query
// planner statistics. A complete store is eligible to serve as the
// implicit reference of a later session.
func (s *Store) MarkComplete() error {
	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec("ANALYZE"); err != nil {
		return fmt.Errorf("analyze store: %w", err)
	}
	return s.advance(StampComplete)
}

// AttachReference attaches the store at path read-only under the
// reference schema for the lifetime of this store. An empty path attaches
// an empty in-memory reference, so every node classifies as new.
func (s *Store) AttachReference(path string) error {
	if s.closed {
		return ErrStoreClosed
	}
	if path == "" {
		if _, err := s.db.Exec("ATTACH ':memory:' AS reference"); err != nil {
			return fmt.Errorf("attach empty reference: %w", err)
		}
		if err := initSchema(s.db, "reference"); err != nil {
			return fmt.Errorf("attach empty reference: %w", err)
		}
	} else {
		if _, err := s.db.Exec("ATTACH ? AS reference", path); err != nil {
			return fmt.Errorf("attach reference %q: %w", path, err)
		}
	}
	s.hasRef = true
	return nil
}

// MergeReference inserts every reference row whose node id has no live
// row yet. This carries nodes absent from the current collection forward
// so later sessions do not see them as new.
func (s *Store) MergeReference() error {
	if s.closed {
		return ErrStoreClosed
	}
	if !s.hasRef {
		return errors.New("no reference attached")
	}
	_, err := s.db.Exec(`
		INSERT INTO main.items
			SELECT *
			FROM reference.items
			WHERE true
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("merge reference: %w", err)
	}
	return nil
}

// Classification maps every node id appearing in either the live or the
// reference store to its reference outcome, defaulting to New for ids the
// reference does not know. Built explicitly rather than with an outer
// join so the semantics do not depend on the storage engine.
func (s *Store) Classification() (map[string]Outcome, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	if !s.hasRef {
		return nil, errors.New("no reference attached")
	}
	out := make(map[string]Outcome)

	rows, err := s.db.Query("SELECT nodeid, outcome FROM reference.items")
	if err != nil {
		return nil, fmt.Errorf("read reference outcomes: %w", err)
	}
	for rows.Next() {
		var id, oc string
		if err := rows.Scan(&id, &oc); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan reference outcome: %w", err)
		}
		out[id] = Outcome(oc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate reference outcomes: %w", err)
	}
	rows.Close()

	rows, err = s.db.Query("SELECT nodeid FROM main.items")
	if err != nil {
		return nil, fmt.Errorf("read live node ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan live node id: %w", err)
		}
		if _, ok := out[id]; !ok {
			out[id] = New
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate live node ids: %w", err)
	}
	return out, nil
}

// NodeIDsByOutcome returns the reference node ids whose outcome is in the
// requested category set.
func (s *Store) NodeIDsByOutcome(categories CategorySet) ([]string, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	if !s.hasRef {
		return nil, errors.New("no reference attached")
	}
	if len(categories) == 0 {
		return nil, nil
	}
	placeholders := make([]string, 0, len(categories))
	args := make([]any, 0, len(categories))
	for oc := range categories {
		placeholders = append(placeholders, "?")
		args = append(args, string(oc))
	}
	rows, err := s.db.Query(
		fmt.Sprintf(
			"SELECT nodeid FROM reference.items WHERE outcome IN (%s)",
			strings.Join(placeholders, ", "),
		),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query reference by outcome: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reference node id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference node ids: %w", err)
	}
	return ids, nil
}

// CarryForward writes the given outcomes into the live store, used for
// deselected nodes so their last known state is not forgotten and does
// not resurface as new in the following session.
func (s *Store) CarryForward(outcomes map[string]Outcome) error {
	if s.closed {
		return ErrStoreClosed
	}
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("carry forward outcomes: %w", err)
	}
	stmt, err := tx.Prepare("UPDATE main.items SET outcome = ? WHERE nodeid = ?")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("carry forward outcomes: %w", err)
	}
	for id, oc := range outcomes {
		if _, err := stmt.Exec(string(oc), id); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("carry forward %q: %w", id, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("carry forward outcomes: %w", err)
	}
	return nil
}

// BackfillPending overwrites every live row still pending with its
// reference outcome, unless the reference outcome is passed: a node that
// last passed but did not run this session stays pending rather than
// being falsely marked passed. Advances the store to StampBackfilled.
func (s *Store) BackfillPending() error {
	if s.closed {
		return ErrStoreClosed
	}
	if !s.hasRef {
		return errors.New("no reference attached")
	}
	_, err := s.db.Exec(`
		UPDATE main.items
		SET outcome = reference.items.outcome
		FROM reference.items
		WHERE main.items.nodeid = reference.items.nodeid
		  AND main.items.outcome = 'pending'
		  AND reference.items.outcome != 'passed'
	`)
	if err != nil {
		return fmt.Errorf("backfill pending items: %w", err)
	}
	return s.advance(StampBackfilled)
}

// Get returns the record for one node id.
func (s *Store) Get(nodeID string) (Record, error) {
	if s.closed {
		return Record{}, ErrStoreClosed
	}
	row := s.db.QueryRow(`
		SELECT nodeid, outcome, collect, setup, call, teardown, filename, lineno, testname
		FROM items
		WHERE nodeid = ?
	`, nodeID)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// CollectRecords returns every record carrying a collection report, in
// the order they were recorded.
func (s *Store) CollectRecords() ([]Record, error) {
	return s.queryRecords("collect IS NOT NULL")
}

// TestRecords returns every per-test record (node ids below file level),
// in the order they were recorded.
func (s *Store) TestRecords() ([]Record, error) {
	return s.queryRecords("nodeid LIKE '%::%'")
}

// CountExecuted counts the per-test records with a real recorded outcome.
func (s *Store) CountExecuted() (int, error) {
	if s.closed {
		return 0, ErrStoreClosed
	}
	var n int
	err := s.db.QueryRow(
		"SELECT count(*) FROM items WHERE outcome NOT IN ('pending', 'new') AND nodeid LIKE '%::%'",
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count executed items: %w", err)
	}
	return n, nil
}

// OutcomeCounts tallies records by outcome.
func (s *Store) OutcomeCounts() (map[Outcome]int, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.Query("SELECT outcome, count(*) FROM items GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()
	counts := make(map[Outcome]int)
	for rows.Next() {
		var oc string
		var n int
		if err := rows.Scan(&oc, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[Outcome(oc)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}
	return counts, nil
}

func (s *Store) queryRecords(where string) ([]Record, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT nodeid, outcome, collect, setup, call, teardown, filename, lineno, testname
		FROM items
		WHERE %s
		ORDER BY rowid
	`, where))
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return recs, nil
}

// textBlob binds a serialized report for a STRICT text column, mapping a
// nil blob to NULL.
func textBlob(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func scanRecord(scan func(...any) error) (Record, error) {
	var (
		rec                            Record
		outcome                        string
		collect, setup, call, teardown sql.NullString
		filename, testname             sql.NullString
		lineno                         sql.NullInt64
	)
	err := scan(
		&rec.NodeID, &outcome,
		&collect, &setup, &call, &teardown,
		&filename, &lineno, &testname,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Outcome = Outcome(outcome)
	if collect.Valid {
		rec.Collect = []byte(collect.String)
	}
	if setup.Valid {
		rec.Setup = []byte(setup.String)
	}
	if call.Valid {
		rec.Call = []byte(call.String)
	}
	if teardown.Valid {
		rec.Teardown = []byte(teardown.String)
	}
	if filename.Valid {
		rec.Location = &Location{
			Filename: filename.String,
			Line:     int(lineno.Int64),
			TestName: testname.String,
		}
	}
	return rec, nil
}
