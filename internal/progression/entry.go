// Package progression composes the graph, unlock index, and economy ledger
// into the single facade the rest of the server calls for gating decisions.
package progression

import "craftgate/server/progression/graph"

// Entry is the gating record bound one-to-one with a host crafting recipe.
// Entries are derived from graph nodes at load time and replaced wholesale on
// reload; they are never mutated in place.
type Entry struct {
	ID                 string
	NodeID             string
	TabID              string
	DisplayName        string
	Icon               string
	RequiredPoints     int
	RequiredLevel      int
	RequiresPermission bool
	PermissionID       string
	RequiredRecipeIDs  []string
	BlockingRecipeIDs  []string
	UnlockingRecipeIDs []string
	Tags               []string
	GrantsCraftAccess  bool
}

// EntryFromNode projects the recipe-facing view of a graph node.
func EntryFromNode(node *graph.Node) *Entry {
	if node == nil || node.IsCustom() {
		return nil
	}
	return &Entry{
		ID:                 node.RecipeID,
		NodeID:             node.ID,
		TabID:              node.TabID,
		DisplayName:        node.DisplayName,
		Icon:               node.Icon,
		RequiredPoints:     node.StudyCost,
		RequiredLevel:      node.RequiredLevel,
		RequiresPermission: node.RequiresPermission,
		PermissionID:       node.PermissionID,
		RequiredRecipeIDs:  append([]string(nil), node.RequiredRecipeIDs...),
		BlockingRecipeIDs:  append([]string(nil), node.BlockingRecipeIDs...),
		UnlockingRecipeIDs: append([]string(nil), node.UnlockingRecipeIDs...),
		Tags:               append([]string(nil), node.Tags...),
		GrantsCraftAccess:  node.GrantsCraftAccess,
	}
}

// HasTag reports whether the entry carries the static classification tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// StudyKey returns the identifier recorded in the unlock index when the node
// is studied: the recipe id for recipe-backed nodes, the node id for custom
// milestones.
func StudyKey(node *graph.Node) string {
	if node == nil {
		return ""
	}
	if node.RecipeID != "" {
		return node.RecipeID
	}
	return node.ID
}
