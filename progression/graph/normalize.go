package graph

import (
	"fmt"
	"sort"
	"strings"
)

// buildSnapshot normalizes raw documents into an immutable snapshot. Loading
// fails soft: a malformed entry is skipped and recorded as a problem while the
// rest of the graph survives.
func buildSnapshot(nodeDocs []NodeDocument, tabDocs []TabDocument) *Snapshot {
	snapshot := &Snapshot{
		Nodes:        make(map[string]*Node, len(nodeDocs)),
		Tabs:         make(map[string]*Tab, len(tabDocs)),
		ByRecipe:     make(map[string]*Node, len(nodeDocs)),
		Cyclic:       make(map[string]struct{}),
		UnlockedBy:   make(map[string][]string),
		TabUnlockers: make(map[string][]string),
	}

	for _, doc := range tabDocs {
		tab, problems := normalizeTab(doc)
		snapshot.Problems = append(snapshot.Problems, problems...)
		if tab == nil {
			continue
		}
		if _, dup := snapshot.Tabs[tab.ID]; dup {
			snapshot.Problems = append(snapshot.Problems, Problem{
				Kind: ProblemDuplicateID, TabID: tab.ID, Detail: "tab skipped: id already defined",
			})
			continue
		}
		snapshot.Tabs[tab.ID] = tab
	}

	for _, doc := range nodeDocs {
		node, problems := normalizeNode(doc)
		snapshot.Problems = append(snapshot.Problems, problems...)
		if node == nil {
			continue
		}
		if _, dup := snapshot.Nodes[node.ID]; dup {
			snapshot.Problems = append(snapshot.Problems, Problem{
				Kind: ProblemDuplicateID, NodeID: node.ID, Detail: "node skipped: id already defined",
			})
			continue
		}
		if node.RecipeID != "" {
			if other, dup := snapshot.ByRecipe[node.RecipeID]; dup {
				snapshot.Problems = append(snapshot.Problems, Problem{
					Kind: ProblemDuplicateID, NodeID: node.ID, Ref: node.RecipeID,
					Detail: fmt.Sprintf("node skipped: recipe already gated by node %q", other.ID),
				})
				continue
			}
		}
		snapshot.Nodes[node.ID] = node
		if node.RecipeID != "" {
			snapshot.ByRecipe[node.RecipeID] = node
		}
	}

	// Nodes referencing a missing tab fall back to the default tab.
	needsDefault := false
	for _, id := range snapshot.NodeIDs() {
		node := snapshot.Nodes[id]
		if _, ok := snapshot.Tabs[node.TabID]; !ok {
			if node.TabID != DefaultTabID {
				snapshot.Problems = append(snapshot.Problems, Problem{
					Kind: ProblemDanglingRef, NodeID: node.ID, Ref: node.TabID,
					Suggestion: suggestID(node.TabID, tabIDList(snapshot.Tabs)),
					Detail:     "unknown tab, node moved to default",
				})
				node.TabID = DefaultTabID
			}
			needsDefault = true
		}
	}
	if needsDefault {
		if _, ok := snapshot.Tabs[DefaultTabID]; !ok {
			snapshot.Tabs[DefaultTabID] = &Tab{ID: DefaultTabID, Title: "Default"}
		}
	}

	indexUnlockEdges(snapshot)
	snapshot.Problems = append(snapshot.Problems, checkReferences(snapshot)...)
	detectCycles(snapshot)
	return snapshot
}

// indexUnlockEdges inverts the per-node unlock lists into target-keyed
// indexes. Studying a source does not auto-study its targets; it only flips
// their availability, so the resolver looks targets up here.
func indexUnlockEdges(s *Snapshot) {
	for _, id := range s.NodeIDs() {
		node := s.Nodes[id]
		for _, targetID := range node.UnlockNodeIDs {
			if _, ok := s.Nodes[targetID]; ok {
				s.UnlockedBy[targetID] = append(s.UnlockedBy[targetID], id)
			}
		}
		for _, recipeID := range node.UnlockingRecipeIDs {
			if target, ok := s.ByRecipe[recipeID]; ok {
				s.UnlockedBy[target.ID] = append(s.UnlockedBy[target.ID], id)
			}
		}
		for _, tabID := range node.UnlockTabIDs {
			if _, ok := s.Tabs[tabID]; ok {
				s.TabUnlockers[tabID] = append(s.TabUnlockers[tabID], id)
			}
		}
	}
}

func normalizeNode(doc NodeDocument) (*Node, []Problem) {
	var problems []Problem
	id := strings.TrimSpace(doc.ID)
	if id == "" {
		return nil, []Problem{{Kind: ProblemMalformed, Detail: "node skipped: blank id"}}
	}

	node := &Node{
		ID:          id,
		TabID:       strings.TrimSpace(doc.Tab),
		RecipeID:    strings.TrimSpace(doc.RecipeID),
		DisplayName: strings.TrimSpace(doc.DisplayName),
		NodeTitle:   strings.TrimSpace(doc.NodeTitle),
		Icon:        CanonicalIcon(doc.CustomIcon),
		StudyCost:   doc.StudyCost,
		Position:    doc.Position,
	}
	if node.TabID == "" {
		node.TabID = DefaultTabID
	}
	if node.StudyCost < 0 {
		problems = append(problems, Problem{Kind: ProblemMalformed, NodeID: id, Detail: "negative studyCost clamped to 0"})
		node.StudyCost = 0
	}

	node.RequiredLevel = doc.Gating.RequiredLevel
	if node.RequiredLevel < 1 {
		node.RequiredLevel = 1
	}
	node.RequiresPermission = doc.Gating.RequiresPermission
	node.PermissionID = strings.TrimSpace(doc.Gating.PermissionID)
	node.Tags = dedupe(doc.Gating.Tags)

	switch strings.ToUpper(strings.TrimSpace(doc.Availability.Mode)) {
	case "", string(ModeAlways):
		node.Mode = ModeAlways
	case string(ModeRequiresNodes):
		node.Mode = ModeRequiresNodes
	default:
		problems = append(problems, Problem{
			Kind: ProblemMalformed, NodeID: id,
			Detail: fmt.Sprintf("unknown availability mode %q, defaulting to ALWAYS", doc.Availability.Mode),
		})
		node.Mode = ModeAlways
	}
	node.AllowIndependent = doc.Availability.AllowIndependentStudy

	node.RequiredNodeIDs, problems = dropSelfLoops(dedupe(doc.Availability.RequiredNodeIDs), id, id, problems)
	node.RequiredRecipeIDs, problems = dropSelfLoops(dedupe(doc.Gating.RequiredRecipeIDs), node.RecipeID, id, problems)
	node.BlockingRecipeIDs, problems = dropSelfLoops(dedupe(doc.Gating.BlockingRecipeIDs), node.RecipeID, id, problems)
	node.UnlockingRecipeIDs, problems = dropSelfLoops(dedupe(doc.Gating.UnlockingRecipeIDs), node.RecipeID, id, problems)

	node.UnlockNodeIDs = dedupe(doc.Unlocks.NodeIDs)
	node.UnlockTabIDs = dedupe(doc.Unlocks.TabIDs)
	node.UnlockPermissions = dedupe(doc.Unlocks.PermissionIDs)

	if doc.GrantsCraftAccess != nil {
		node.GrantsCraftAccess = *doc.GrantsCraftAccess
	} else {
		node.GrantsCraftAccess = true
	}
	return node, problems
}

func normalizeTab(doc TabDocument) (*Tab, []Problem) {
	id := strings.TrimSpace(doc.ID)
	if id == "" {
		return nil, []Problem{{Kind: ProblemMalformed, Detail: "tab skipped: blank id"}}
	}
	return &Tab{
		ID:                  id,
		Title:               strings.TrimSpace(doc.Title),
		Icon:                CanonicalIcon(doc.Icon),
		RequiredTabIDs:      removeValue(dedupe(doc.RequiredTabIDs), id),
		RequiredNodeIDs:     dedupe(doc.RequiredNodeIDs),
		RequiredPermissions: dedupe(doc.RequiredPermissions),
	}, nil
}

// CanonicalIcon normalizes icon path strings into a stable namespace:path
// resource id: lowercase, forward slashes, default namespace when absent.
func CanonicalIcon(raw string) string {
	icon := strings.ToLower(strings.TrimSpace(raw))
	if icon == "" {
		return ""
	}
	icon = strings.ReplaceAll(icon, "\\", "/")
	icon = strings.TrimPrefix(icon, "assets/")
	if !strings.Contains(icon, ":") {
		icon = "craftgate:" + icon
	}
	return icon
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func removeValue(values []string, drop string) []string {
	out := values[:0]
	for _, value := range values {
		if value != drop {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// dropSelfLoops removes edges pointing at the node itself. A node can never be
// its own prerequisite.
func dropSelfLoops(edges []string, self, nodeID string, problems []Problem) ([]string, []Problem) {
	if self == "" {
		return edges, problems
	}
	kept := edges[:0]
	for _, edge := range edges {
		if edge == self {
			problems = append(problems, Problem{
				Kind: ProblemSelfLoop, NodeID: nodeID, Ref: edge, Detail: "self-referential edge dropped",
			})
			continue
		}
		kept = append(kept, edge)
	}
	if len(kept) == 0 {
		return nil, problems
	}
	return kept, problems
}

// checkReferences reports dangling edges. The edges themselves are kept; at
// evaluation time an unknown prerequisite simply never satisfies.
func checkReferences(s *Snapshot) []Problem {
	var problems []Problem
	nodeIDs := s.NodeIDs()
	recipeIDs := make([]string, 0, len(s.ByRecipe))
	for id := range s.ByRecipe {
		recipeIDs = append(recipeIDs, id)
	}
	sort.Strings(recipeIDs)
	tabIDs := tabIDList(s.Tabs)

	for _, id := range nodeIDs {
		node := s.Nodes[id]
		for _, ref := range node.RequiredNodeIDs {
			if _, ok := s.Nodes[ref]; !ok {
				problems = append(problems, Problem{
					Kind: ProblemDanglingRef, NodeID: id, Ref: ref,
					Suggestion: suggestID(ref, nodeIDs), Detail: "unknown required node",
				})
			}
		}
		for _, ref := range node.RequiredRecipeIDs {
			if _, ok := s.ByRecipe[ref]; !ok {
				problems = append(problems, Problem{
					Kind: ProblemDanglingRef, NodeID: id, Ref: ref,
					Suggestion: suggestID(ref, recipeIDs), Detail: "unknown required recipe",
				})
			}
		}
		for _, ref := range node.BlockingRecipeIDs {
			if _, ok := s.ByRecipe[ref]; !ok {
				problems = append(problems, Problem{
					Kind: ProblemDanglingRef, NodeID: id, Ref: ref,
					Suggestion: suggestID(ref, recipeIDs), Detail: "unknown blocking recipe",
				})
			}
		}
		for _, ref := range node.UnlockNodeIDs {
			if _, ok := s.Nodes[ref]; !ok {
				problems = append(problems, Problem{
					Kind: ProblemDanglingRef, NodeID: id, Ref: ref,
					Suggestion: suggestID(ref, nodeIDs), Detail: "unknown unlocked node",
				})
			}
		}
		for _, ref := range node.UnlockingRecipeIDs {
			if _, ok := s.ByRecipe[ref]; !ok {
				problems = append(problems, Problem{
					Kind: ProblemDanglingRef, NodeID: id, Ref: ref,
					Suggestion: suggestID(ref, recipeIDs), Detail: "unknown unlocked recipe",
				})
			}
		}
		for _, ref := range node.UnlockTabIDs {
			if _, ok := s.Tabs[ref]; !ok {
				problems = append(problems, Problem{
					Kind: ProblemDanglingRef, NodeID: id, Ref: ref,
					Suggestion: suggestID(ref, tabIDs), Detail: "unknown unlocked tab",
				})
			}
		}
	}

	sortedTabs := tabIDs
	for _, tabID := range sortedTabs {
		tab := s.Tabs[tabID]
		for _, ref := range tab.RequiredTabIDs {
			if _, ok := s.Tabs[ref]; !ok {
				problems = append(problems, Problem{
					Kind: ProblemDanglingRef, TabID: tabID, Ref: ref,
					Suggestion: suggestID(ref, sortedTabs), Detail: "unknown required tab",
				})
			}
		}
		for _, ref := range tab.RequiredNodeIDs {
			if _, ok := s.Nodes[ref]; !ok {
				problems = append(problems, Problem{
					Kind: ProblemDanglingRef, TabID: tabID, Ref: ref,
					Suggestion: suggestID(ref, nodeIDs), Detail: "unknown required node",
				})
			}
		}
	}
	return problems
}

func tabIDList(tabs map[string]*Tab) []string {
	ids := make([]string, 0, len(tabs))
	for id := range tabs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func nodeToDocument(node *Node) NodeDocument {
	grants := node.GrantsCraftAccess
	return NodeDocument{
		ID:          node.ID,
		Tab:         node.TabID,
		RecipeID:    node.RecipeID,
		DisplayName: node.DisplayName,
		NodeTitle:   node.NodeTitle,
		CustomIcon:  node.Icon,
		StudyCost:   node.StudyCost,
		Position:    node.Position,
		Availability: AvailabilityDocument{
			Mode:                  string(node.Mode),
			RequiredNodeIDs:       append([]string(nil), node.RequiredNodeIDs...),
			AllowIndependentStudy: node.AllowIndependent,
		},
		Unlocks: UnlocksDocument{
			NodeIDs:       append([]string(nil), node.UnlockNodeIDs...),
			TabIDs:        append([]string(nil), node.UnlockTabIDs...),
			PermissionIDs: append([]string(nil), node.UnlockPermissions...),
		},
		Gating: GatingDocument{
			RequiredLevel:      node.RequiredLevel,
			RequiresPermission: node.RequiresPermission,
			PermissionID:       node.PermissionID,
			RequiredRecipeIDs:  append([]string(nil), node.RequiredRecipeIDs...),
			BlockingRecipeIDs:  append([]string(nil), node.BlockingRecipeIDs...),
			UnlockingRecipeIDs: append([]string(nil), node.UnlockingRecipeIDs...),
			Tags:               append([]string(nil), node.Tags...),
		},
		GrantsCraftAccess: &grants,
	}
}

func tabToDocument(tab *Tab) TabDocument {
	return TabDocument{
		ID:                  tab.ID,
		Title:               tab.Title,
		Icon:                tab.Icon,
		RequiredTabIDs:      append([]string(nil), tab.RequiredTabIDs...),
		RequiredNodeIDs:     append([]string(nil), tab.RequiredNodeIDs...),
		RequiredPermissions: append([]string(nil), tab.RequiredPermissions...),
	}
}
