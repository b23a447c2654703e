package sessions

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/masklinn/pytest-sessions/pkg/sessions/store"
)

// parseRanks turns a comma-separated category priority list into a rank
// map, first entry ranking highest. Returns nil when the list is empty.
func parseRanks(order string) map[store.Outcome]int {
	var ranks map[store.Outcome]int
	for _, tag := range strings.Split(order, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		outcome := store.Outcome(tag)
		if _, ok := ranks[outcome]; ok {
			continue
		}
		if ranks == nil {
			ranks = make(map[store.Outcome]int)
		}
		ranks[outcome] = len(ranks)
	}
	return ranks
}

const unrankedOutcome = 99

// reorderSelector sorts the kept items by the priority of their
// reference outcome, newest file first within equal priority.
type reorderSelector struct {
	st    *store.Store
	root  string
	ranks map[store.Outcome]int
}

// sort reorders items in place. Outcomes absent from the rank map sort
// last, after every listed category. Ties break on file modification
// time, most recently touched first, then on collection order.
func (r *reorderSelector) sort(items []Item) error {
	prev, err := r.st.Classification()
	if err != nil {
		return err
	}

	mtimes := make(map[string]int64, len(items))
	for _, it := range items {
		if _, ok := mtimes[it.Path]; ok {
			continue
		}
		path := it.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.root, path)
		}
		var mtime int64
		if info, err := os.Stat(path); err == nil {
			mtime = info.ModTime().UnixNano()
		}
		mtimes[it.Path] = mtime
	}

	rank := func(it Item) int {
		outcome, ok := prev[it.NodeID]
		if !ok {
			outcome = store.New
		}
		if n, ok := r.ranks[outcome]; ok {
			return n
		}
		return unrankedOutcome
	}
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := rank(items[i]), rank(items[j])
		if ri != rj {
			return ri < rj
		}
		return mtimes[items[i].Path] > mtimes[items[j].Path]
	})
	return nil
}
