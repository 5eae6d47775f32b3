package progression

import (
	"craftgate/server/internal/economy"
	"craftgate/server/progression/graph"
)

// Reason explains why a study attempt or availability check was denied.
// Denials always carry a specific reason so the UI never shows a generic
// failure.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonUnknownRecipe       Reason = "unknown_recipe"
	ReasonAlreadyStudied      Reason = "already_studied"
	ReasonPermissionMissing   Reason = "permission_missing"
	ReasonInsufficientPoints  Reason = "insufficient_points"
	ReasonInsufficientLevel   Reason = "insufficient_level"
	ReasonTabLocked           Reason = "tab_locked"
	ReasonPrerequisiteMissing Reason = "prerequisite_not_studied"
	ReasonPrerequisiteCycle   Reason = "prerequisite_cycle"
	ReasonNotYetUnlocked      Reason = "not_yet_unlocked"
)

// Message returns the user-facing description for the denial.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return "available"
	case ReasonUnknownRecipe:
		return "recipe is not part of the study graph"
	case ReasonAlreadyStudied:
		return "recipe is already studied"
	case ReasonPermissionMissing:
		return "missing permission"
	case ReasonInsufficientPoints:
		return "not enough learning points"
	case ReasonInsufficientLevel:
		return "level too low"
	case ReasonTabLocked:
		return "tab is still locked"
	case ReasonPrerequisiteMissing:
		return "prerequisite not studied"
	case ReasonPrerequisiteCycle:
		return "recipe is unreachable due to a dependency cycle"
	case ReasonNotYetUnlocked:
		return "a preceding study must unlock this first"
	default:
		return string(r)
	}
}

// PlayerSnapshot carries everything availability evaluation needs about one
// player. Building it up front keeps the resolver a pure function that can be
// called concurrently.
type PlayerSnapshot struct {
	Studied       map[string]struct{}
	Ledger        *economy.Ledger
	HasPermission func(permissionID string) bool
}

func (s PlayerSnapshot) studied(key string) bool {
	_, ok := s.Studied[key]
	return ok
}

func (s PlayerSnapshot) hasPermission(id string) bool {
	if s.HasPermission == nil {
		return true
	}
	return s.HasPermission(id)
}

// Availability decides whether the node is currently eligible to be studied.
// The step order is fixed: permission and economy checks short-circuit before
// the graph-prerequisite walk. "Available" is distinct from "studied"; study
// is a one-shot transition.
func Availability(g *graph.Snapshot, node *graph.Node, snap PlayerSnapshot) (bool, Reason) {
	if g == nil || node == nil {
		return false, ReasonUnknownRecipe
	}
	if snap.studied(StudyKey(node)) {
		return false, ReasonAlreadyStudied
	}
	if node.RequiresPermission && !snap.hasPermission(node.PermissionID) {
		return false, ReasonPermissionMissing
	}
	if snap.Ledger == nil || snap.Ledger.Balance(economy.PointsLearning) < node.StudyCost {
		return false, ReasonInsufficientPoints
	}
	if snap.Ledger.Level < node.RequiredLevel {
		return false, ReasonInsufficientLevel
	}

	if _, cyclic := g.Cyclic[node.ID]; cyclic {
		return false, ReasonPrerequisiteCycle
	}
	if !tabUnlocked(g, node.TabID, snap, make(map[string]struct{})) {
		return false, ReasonTabLocked
	}

	// Incoming unlock edges keep the node locked until any source is studied.
	// Studying the source only flips availability here; the target's own cost
	// and level gates still apply on its own study.
	if sources := g.Unlockers(node.ID); len(sources) > 0 && !anyStudied(g, sources, snap) {
		return false, ReasonNotYetUnlocked
	}

	// The entry-level recipe prerequisites and the node-graph availability
	// block are independent layers combined with AND. Mode ALWAYS waives the
	// recipe layer entirely.
	if node.Mode != graph.ModeAlways {
		for _, recipeID := range node.RequiredRecipeIDs {
			parent, ok := g.NodeForRecipe(recipeID)
			if !ok {
				// Dangling reference: tolerated, but never satisfiable.
				return false, ReasonPrerequisiteMissing
			}
			if !snap.studied(StudyKey(parent)) {
				return false, ReasonPrerequisiteMissing
			}
		}
	}

	if node.Mode == graph.ModeRequiresNodes && !node.AllowIndependent {
		for _, nodeID := range node.RequiredNodeIDs {
			parent, ok := g.Node(nodeID)
			if !ok {
				return false, ReasonPrerequisiteMissing
			}
			if !snap.studied(StudyKey(parent)) {
				return false, ReasonPrerequisiteMissing
			}
		}
	}
	return true, ReasonNone
}

// anyStudied reports whether at least one of the listed nodes is studied.
func anyStudied(g *graph.Snapshot, nodeIDs []string, snap PlayerSnapshot) bool {
	for _, id := range nodeIDs {
		if node, ok := g.Node(id); ok && snap.studied(StudyKey(node)) {
			return true
		}
	}
	return false
}

// tabUnlocked reports whether the player can see the tab. Tabs gate whole
// sub-graphs: required permissions, studied nodes, and parent tabs all apply.
// A studied unlock-tab edge waives the tab's requirement lists outright. The
// visited set keeps a malformed tab cycle from recursing forever.
func tabUnlocked(g *graph.Snapshot, tabID string, snap PlayerSnapshot, visited map[string]struct{}) bool {
	if _, seen := visited[tabID]; seen {
		return false
	}
	visited[tabID] = struct{}{}

	tab, ok := g.Tab(tabID)
	if !ok {
		return true
	}
	if anyStudied(g, g.TabUnlockers[tabID], snap) {
		return true
	}
	for _, perm := range tab.RequiredPermissions {
		if !snap.hasPermission(perm) {
			return false
		}
	}
	for _, nodeID := range tab.RequiredNodeIDs {
		parent, ok := g.Node(nodeID)
		if !ok {
			return false
		}
		if !snap.studied(StudyKey(parent)) {
			return false
		}
	}
	for _, parentTab := range tab.RequiredTabIDs {
		if !tabUnlocked(g, parentTab, snap, visited) {
			return false
		}
	}
	return true
}
