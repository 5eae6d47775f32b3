package graph

import (
	"sort"
	"strings"
)

// detectCycles walks the effective prerequisite graph depth-first with a
// visiting set and flags every node on a cycle. Flagged nodes stay in the
// graph; they evaluate as never available, which is deterministic and keeps a
// malformed config from taking the whole graph down.
func detectCycles(s *Snapshot) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(s.Nodes))
	stack := make([]string, 0, len(s.Nodes))

	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		stack = append(stack, id)
		for _, next := range prerequisiteEdges(s, s.Nodes[id]) {
			switch state[next] {
			case unvisited:
				visit(next)
			case visiting:
				// Everything from the first occurrence of next on the stack
				// is part of the cycle.
				for i := len(stack) - 1; i >= 0; i-- {
					s.Cyclic[stack[i]] = struct{}{}
					if stack[i] == next {
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, id := range s.NodeIDs() {
		if state[id] == unvisited {
			visit(id)
		}
	}

	cyclic := make([]string, 0, len(s.Cyclic))
	for id := range s.Cyclic {
		cyclic = append(cyclic, id)
	}
	sort.Strings(cyclic)
	for _, id := range cyclic {
		s.Problems = append(s.Problems, Problem{
			Kind:   ProblemCycle,
			NodeID: id,
			Detail: "node on a prerequisite cycle: " + strings.Join(cyclic, " -> "),
		})
	}
}

// prerequisiteEdges returns the node ids this node effectively depends on:
// its availability parents when the mode demands them, plus the nodes gating
// its required recipes when the mode does not waive that layer. Edges into
// unknown ids are skipped here; dangling references are reported separately.
func prerequisiteEdges(s *Snapshot, node *Node) []string {
	var edges []string
	if node.Mode == ModeRequiresNodes && !node.AllowIndependent {
		for _, id := range node.RequiredNodeIDs {
			if _, ok := s.Nodes[id]; ok {
				edges = append(edges, id)
			}
		}
	}
	if node.Mode != ModeAlways {
		for _, recipeID := range node.RequiredRecipeIDs {
			if parent, ok := s.ByRecipe[recipeID]; ok {
				edges = append(edges, parent.ID)
			}
		}
	}
	sort.Strings(edges)
	return edges
}
