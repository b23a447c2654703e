package sessions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/masklinn/pytest-sessions/pkg/sessions/idtrie"
	"github.com/masklinn/pytest-sessions/pkg/sessions/store"
)

// ErrNotOptimizable signals that collection skipping cannot be applied
// for this run and collection must fall back to the full search. It is
// handled internally and never surfaced as a user error.
var ErrNotOptimizable = errors.New("collection skipping not applicable")

// skipper prunes the collection search before it descends into paths that
// cannot contain a selected node.
//
// The optimization is strongly caveated by the empty-selection fallback:
// if every node in the requested categories was removed or renamed, the
// run needs a full collection. So during collection, trie-contained paths
// are only prioritized at first, and skipping proper starts only after at
// least one trie-contained node has actually been collected.
type skipper struct {
	trie       *idtrie.Trie
	isInitPath func(string) bool

	// foundMatch flips once a trie-contained node has been collected;
	// from then on skipping (the second-stage filter) is active.
	foundMatch   bool
	skippedFiles int

	set settings
	ctx context.Context
}

// newSkipper queries the reference for the node ids in the requested
// categories and builds the path trie over them. Returns
// ErrNotOptimizable when none of the matching files still exists under
// root or the trie would be empty.
func newSkipper(
	st *store.Store,
	root string,
	categories store.CategorySet,
	isInitPath func(string) bool,
	set settings,
	ctx context.Context,
) (*skipper, error) {
	if len(categories) == 0 || categories.Has(store.New) {
		return nil, fmt.Errorf("skipper requires concrete categories, got %v", categories)
	}
	ids, err := st.NodeIDsByOutcome(categories)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{})
	for _, id := range ids {
		path, _, _ := strings.Cut(id, idtrie.Separator)
		paths[path] = struct{}{}
	}
	anyFile := false
	for path := range paths {
		if info, err := os.Stat(filepath.Join(root, path)); err == nil && info.Mode().IsRegular() {
			anyFile = true
			break
		}
	}
	if !anyFile {
		return nil, fmt.Errorf("%w: no matching file exists", ErrNotOptimizable)
	}

	trie := idtrie.New(root, ids)
	if trie.Empty() {
		return nil, fmt.Errorf("%w: no matching node id", ErrNotOptimizable)
	}
	return &skipper{
		trie:       trie,
		isInitPath: isInitPath,
		set:        set,
		ctx:        ctx,
	}, nil
}

// beforeCollect short-circuits collecting a file that cannot contain a
// selected node, once skipping is active. The synthetic report is empty
// and passed so the host treats the file as uneventfully collected.
func (sk *skipper) beforeCollect(c Collector) *CollectReport {
	if !sk.foundMatch || c.Kind != CollectorFile {
		return nil
	}
	if sk.trie.ContainsPath(c.Path) {
		return nil
	}
	sk.skippedFiles++
	sk.set.metrics.RecordSkippedFile(sk.ctx)
	return &CollectReport{NodeID: c.NodeID, Outcome: store.Passed}
}

// afterCollect post-processes a freshly produced collection report.
// Directory levels only get a scheduling hint: contained children sort
// first so a real match is confirmed as early as possible. File levels
// are filtered down to contained nodes once a first match proves the
// optimization safe for this run.
func (sk *skipper) afterCollect(c Collector, rep *CollectReport) {
	switch c.Kind {
	case CollectorRoot, CollectorDir:
		contained := make(map[string]bool, len(rep.Result))
		for _, n := range rep.Result {
			contained[n.NodeID] = sk.trie.ContainsPath(n.Path)
		}
		sort.SliceStable(rep.Result, func(i, j int) bool {
			return contained[rep.Result[i].NodeID] && !contained[rep.Result[j].NodeID]
		})

	case CollectorFile:
		if !sk.trie.ContainsPath(c.Path) {
			return
		}
		if !sk.foundMatch {
			any := false
			for _, n := range rep.Result {
				if sk.trie.ContainsID(n.NodeID) {
					any = true
					break
				}
			}
			if !any {
				// no actual match yet: do not start skipping before the
				// optimization is proven safe for this run
				return
			}
			sk.foundMatch = true
		}

		filtered := rep.Result[:0]
		for _, n := range rep.Result {
			if sk.trie.ContainsID(n.NodeID) || n.IsCollector || sk.initPath(n.Path) {
				filtered = append(filtered, n)
			}
		}
		rep.Result = filtered
	}
}

func (sk *skipper) initPath(path string) bool {
	return sk.isInitPath != nil && sk.isInitPath(path)
}
