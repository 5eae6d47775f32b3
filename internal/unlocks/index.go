// Package unlocks is the authoritative per-player store of which recipes a
// player has studied. Locked/available states are never stored here; they are
// recomputed from the graph on every query.
package unlocks

import (
	"sort"
	"sync"
)

// Index tracks studied and reset recipe ids per player. The two sets stay
// disjoint; reset ids are kept for audit and UI, not gameplay decisions.
type Index struct {
	mu      sync.RWMutex
	players map[string]*playerSets
}

type playerSets struct {
	studied map[string]struct{}
	reset   map[string]struct{}
}

func NewIndex() *Index {
	return &Index{players: make(map[string]*playerSets)}
}

func (i *Index) sets(playerID string) *playerSets {
	ps, ok := i.players[playerID]
	if !ok {
		ps = &playerSets{studied: make(map[string]struct{}), reset: make(map[string]struct{})}
		i.players[playerID] = ps
	}
	return ps
}

// IsStudied reports whether the player has studied the recipe.
func (i *Index) IsStudied(playerID, recipeID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ps, ok := i.players[playerID]
	if !ok {
		return false
	}
	_, studied := ps.studied[recipeID]
	return studied
}

// Study marks the recipe studied. Idempotent; reports whether the state
// changed. A studied recipe leaves the reset set.
func (i *Index) Study(playerID, recipeID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	ps := i.sets(playerID)
	if _, already := ps.studied[recipeID]; already {
		return false
	}
	ps.studied[recipeID] = struct{}{}
	delete(ps.reset, recipeID)
	return true
}

// Reset reverts the recipe to unstudied. Idempotent inverse of Study; it does
// not refund points (refunds are an explicit ledger operation on the facade).
func (i *Index) Reset(playerID, recipeID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	ps := i.sets(playerID)
	if _, studied := ps.studied[recipeID]; !studied {
		return false
	}
	delete(ps.studied, recipeID)
	ps.reset[recipeID] = struct{}{}
	return true
}

// Snapshot returns sorted copies of the player's studied and reset sets.
func (i *Index) Snapshot(playerID string) (studied, reset []string) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ps, ok := i.players[playerID]
	if !ok {
		return nil, nil
	}
	studied = sortedKeys(ps.studied)
	reset = sortedKeys(ps.reset)
	return studied, reset
}

// StudiedSet returns a copy of the player's studied set for resolver snapshots.
func (i *Index) StudiedSet(playerID string) map[string]struct{} {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ps, ok := i.players[playerID]
	if !ok {
		return map[string]struct{}{}
	}
	copied := make(map[string]struct{}, len(ps.studied))
	for id := range ps.studied {
		copied[id] = struct{}{}
	}
	return copied
}

// Restore replaces the player's sets from persisted state, keeping them
// disjoint by dropping reset ids that also appear studied.
func (i *Index) Restore(playerID string, studied, reset []string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	ps := &playerSets{
		studied: make(map[string]struct{}, len(studied)),
		reset:   make(map[string]struct{}, len(reset)),
	}
	for _, id := range studied {
		ps.studied[id] = struct{}{}
	}
	for _, id := range reset {
		if _, dup := ps.studied[id]; dup {
			continue
		}
		ps.reset[id] = struct{}{}
	}
	i.players[playerID] = ps
}

// Forget drops the player's in-memory state, typically after a save on leave.
func (i *Index) Forget(playerID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.players, playerID)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for id := range set {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}
