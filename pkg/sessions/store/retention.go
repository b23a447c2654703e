package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// namePrefix marks managed session files. Anything else in the directory
// (renamed or hard-linked copies included) is invisible to retention.
const namePrefix = "session-"

// SessionName builds a session file name whose lexicographic order equals
// creation order, down to the microsecond.
func SessionName(t time.Time) string {
	return t.Format("session-20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/1000)
}

// ListSessions returns the managed session file names in dir, sorted in
// creation order.
func ListSessions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), namePrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// IsComplete reports whether the store at path carries the terminal
// version stamp. Unreadable or non-store files report false.
func IsComplete(path string) bool {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return false
	}
	defer db.Close()
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return false
	}
	return v == StampComplete
}

// LatestComplete returns the path of the newest complete session store in
// dir, or "" when no prior complete session exists.
func LatestComplete(dir string) (string, error) {
	names, err := ListSessions(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	for i := len(names) - 1; i >= 0; i-- {
		path := filepath.Join(dir, names[i])
		if IsComplete(path) {
			return path, nil
		}
	}
	return "", nil
}

// Prune deletes the oldest managed session files beyond limit, tolerating
// files already removed by a concurrent run. Returns the number of files
// removed.
//
// Known limitation: sessions still in flight (stamp below terminal) count
// against the limit and can be evicted like any other file.
func Prune(dir string, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	names, err := ListSessions(dir)
	if err != nil {
		return 0, err
	}
	if len(names) <= limit {
		return 0, nil
	}
	removed := 0
	for _, name := range names[:len(names)-limit] {
		err := os.Remove(filepath.Join(dir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("prune session %q: %w", name, err)
		}
		if err == nil {
			removed++
		}
	}
	return removed, nil
}
