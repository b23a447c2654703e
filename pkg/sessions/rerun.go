package sessions

import "github.com/masklinn/pytest-sessions/pkg/sessions/store"

// rerunSelector partitions the collected items into kept and deselected
// based on their outcome in the reference session.
type rerunSelector struct {
	st         *store.Store
	categories store.CategorySet
	allIfNone  bool
}

// filter merges the reference into the live store, then keeps each item
// whose reference outcome (New when the reference does not know it) is in
// the requested category set. When nothing is kept and the fallback is
// enabled, the whole candidate set runs instead.
//
// The reference merge happens even without categories: nodes absent from
// the current collection keep a row reflecting their last known state, so
// later sessions can still classify them.
func (r *rerunSelector) filter(items []Item) (kept, deselected []Item, carried int, err error) {
	if err := r.st.MergeReference(); err != nil {
		return nil, nil, 0, err
	}
	if len(r.categories) == 0 {
		return items, nil, 0, nil
	}

	prev, err := r.st.Classification()
	if err != nil {
		return nil, nil, 0, err
	}

	for _, it := range items {
		outcome, ok := prev[it.NodeID]
		if !ok {
			outcome = store.New
		}
		if r.categories.Has(outcome) {
			kept = append(kept, it)
		} else {
			deselected = append(deselected, it)
		}
	}

	if len(kept) == 0 && r.allIfNone {
		// requested categories match nothing: run everything
		return items, nil, 0, nil
	}

	// carry the deselected nodes' prior state forward, otherwise it is
	// forgotten and the next session sees them as new again
	updates := make(map[string]store.Outcome)
	for _, it := range deselected {
		if outcome := prev[it.NodeID]; outcome != store.New && outcome != "" {
			updates[it.NodeID] = outcome
		}
	}
	if err := r.st.CarryForward(updates); err != nil {
		return nil, nil, 0, err
	}
	return kept, deselected, len(updates), nil
}
