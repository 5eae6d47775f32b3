package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"craftgate/server/logging"
)

type memorySource struct {
	path string
	data []byte
	err  error
}

func (m memorySource) Load() ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]byte(nil), m.data...), nil
}

func (m memorySource) Path() string {
	return m.path
}

func mustJSON(t *testing.T, doc Document) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return data
}

func boolPtr(v bool) *bool { return &v }

func TestLoadNormalizesBlankTab(t *testing.T) {
	data := mustJSON(t, Document{
		Nodes: []NodeDocument{{ID: "wood_planks", RecipeID: "wood_planks"}},
	})
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.json", data: data})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snapshot := store.Snapshot()
	node, ok := snapshot.Node("wood_planks")
	if !ok {
		t.Fatalf("expected node")
	}
	if node.TabID != DefaultTabID {
		t.Fatalf("blank tab should map to default, got %q", node.TabID)
	}
	if _, ok := snapshot.Tab(DefaultTabID); !ok {
		t.Fatalf("default tab should be created")
	}
	if !node.GrantsCraftAccess {
		t.Fatalf("grantsCraftAccess should default to true")
	}
}

func TestLoadSkipsMalformedNodeKeepsRest(t *testing.T) {
	data := mustJSON(t, Document{
		Nodes: []NodeDocument{
			{ID: "", RecipeID: "ghost"},
			{ID: "kept", RecipeID: "kept"},
		},
	})
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.json", data: data})
	if err != nil {
		t.Fatalf("load should fail soft on a malformed node: %v", err)
	}
	snapshot := store.Snapshot()
	if len(snapshot.Nodes) != 1 {
		t.Fatalf("expected 1 surviving node, got %d", len(snapshot.Nodes))
	}
	if !hasProblem(snapshot.Problems, ProblemMalformed) {
		t.Fatalf("expected malformed problem, got %+v", snapshot.Problems)
	}
}

func TestLoadDropsSelfLoop(t *testing.T) {
	data := mustJSON(t, Document{
		Nodes: []NodeDocument{{
			ID:           "loop",
			RecipeID:     "loop",
			Availability: AvailabilityDocument{Mode: "REQUIRES_NODES", RequiredNodeIDs: []string{"loop", "other"}},
		}, {ID: "other", RecipeID: "other"}},
	})
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.json", data: data})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	node, _ := store.Snapshot().Node("loop")
	if len(node.RequiredNodeIDs) != 1 || node.RequiredNodeIDs[0] != "other" {
		t.Fatalf("self-loop edge should be dropped, got %v", node.RequiredNodeIDs)
	}
	if !hasProblem(store.Snapshot().Problems, ProblemSelfLoop) {
		t.Fatalf("expected self-loop problem")
	}
}

func TestLoadDeduplicatesEdges(t *testing.T) {
	data := mustJSON(t, Document{
		Nodes: []NodeDocument{{
			ID:       "a",
			RecipeID: "a",
			Gating:   GatingDocument{RequiredRecipeIDs: []string{"b", "b", " b "}},
		}, {ID: "b", RecipeID: "b"}},
	})
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.json", data: data})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	node, _ := store.Snapshot().Node("a")
	if len(node.RequiredRecipeIDs) != 1 {
		t.Fatalf("edges should be de-duplicated, got %v", node.RequiredRecipeIDs)
	}
}

func TestDanglingReferenceSuggestion(t *testing.T) {
	data := mustJSON(t, Document{
		Nodes: []NodeDocument{{
			ID:       "sword",
			RecipeID: "sword",
			Gating:   GatingDocument{RequiredRecipeIDs: []string{"wod_planks"}},
		}, {ID: "wood_planks", RecipeID: "wood_planks"}},
	})
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.json", data: data})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	found := false
	for _, p := range store.Snapshot().Problems {
		if p.Kind == ProblemDanglingRef && p.Ref == "wod_planks" {
			found = true
			if p.Suggestion != "wood_planks" {
				t.Fatalf("expected typo suggestion wood_planks, got %q", p.Suggestion)
			}
		}
	}
	if !found {
		t.Fatalf("expected dangling reference problem, got %+v", store.Snapshot().Problems)
	}
}

func TestCanonicalIcon(t *testing.T) {
	cases := map[string]string{
		"":                         "",
		"Icons\\Sword.PNG":         "craftgate:icons/sword.png",
		"assets/icons/pick.png":    "craftgate:icons/pick.png",
		"minecraft:item/furnace":   "minecraft:item/furnace",
		"  textures/node_bg.png  ": "craftgate:textures/node_bg.png",
	}
	for raw, want := range cases {
		if got := CanonicalIcon(raw); got != want {
			t.Fatalf("CanonicalIcon(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCycleDetectionFlagsMembers(t *testing.T) {
	data := mustJSON(t, Document{
		Nodes: []NodeDocument{
			{ID: "a", RecipeID: "a", Availability: AvailabilityDocument{Mode: "REQUIRES_NODES", RequiredNodeIDs: []string{"b"}}},
			{ID: "b", RecipeID: "b", Availability: AvailabilityDocument{Mode: "REQUIRES_NODES", RequiredNodeIDs: []string{"c"}}},
			{ID: "c", RecipeID: "c", Availability: AvailabilityDocument{Mode: "REQUIRES_NODES", RequiredNodeIDs: []string{"a"}}},
			{ID: "free", RecipeID: "free"},
		},
	})
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.json", data: data})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snapshot := store.Snapshot()
	for _, id := range []string{"a", "b", "c"} {
		if _, cyclic := snapshot.Cyclic[id]; !cyclic {
			t.Fatalf("expected %s flagged cyclic", id)
		}
	}
	if _, cyclic := snapshot.Cyclic["free"]; cyclic {
		t.Fatalf("free node must not be flagged")
	}
	if !hasProblem(snapshot.Problems, ProblemCycle) {
		t.Fatalf("expected cycle problems")
	}
}

func TestAllowIndependentBreaksCycleFlagging(t *testing.T) {
	data := mustJSON(t, Document{
		Nodes: []NodeDocument{
			{ID: "a", RecipeID: "a", Availability: AvailabilityDocument{Mode: "REQUIRES_NODES", RequiredNodeIDs: []string{"b"}, AllowIndependentStudy: true}},
			{ID: "b", RecipeID: "b", Availability: AvailabilityDocument{Mode: "REQUIRES_NODES", RequiredNodeIDs: []string{"a"}, AllowIndependentStudy: true}},
		},
	})
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.json", data: data})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(store.Snapshot().Cyclic) != 0 {
		t.Fatalf("independent-study nodes have no effective cycle, got %v", store.Snapshot().Cyclic)
	}
}

func TestUpsertNodeGeneratesID(t *testing.T) {
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.json", data: mustJSON(t, Document{})})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	id := store.UpsertNode(NodeDocument{RecipeID: "stone_axe", GrantsCraftAccess: boolPtr(true)})
	if id == "" {
		t.Fatalf("expected generated id")
	}
	if _, ok := store.Snapshot().Node(id); !ok {
		t.Fatalf("upserted node missing from snapshot")
	}
}

func TestRemoveNode(t *testing.T) {
	data := mustJSON(t, Document{Nodes: []NodeDocument{{ID: "a", RecipeID: "a"}}})
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.json", data: data})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !store.RemoveNode("a") {
		t.Fatalf("expected removal to report true")
	}
	if store.RemoveNode("a") {
		t.Fatalf("second removal should report false")
	}
	if _, ok := store.Snapshot().NodeForRecipe("a"); ok {
		t.Fatalf("recipe index should drop removed node")
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	doc := Document{
		Nodes: []NodeDocument{
			{ID: "wood_planks", Tab: "basics", RecipeID: "wood_planks", StudyCost: 0},
			{
				ID: "wooden_sword", Tab: "basics", RecipeID: "wooden_sword", StudyCost: 2,
				Availability: AvailabilityDocument{Mode: "REQUIRES_NODES", RequiredNodeIDs: []string{"wood_planks"}},
				Gating:       GatingDocument{RequiredRecipeIDs: []string{"wood_planks"}, Tags: []string{"common"}},
			},
		},
		Tabs: []TabDocument{{ID: "basics", Title: "Basics"}},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	store, err := Load(logging.NopPublisher(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load(logging.NopPublisher(), path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	before, after := store.Snapshot(), reloaded.Snapshot()
	if len(before.Nodes) != len(after.Nodes) || len(before.Tabs) != len(after.Tabs) {
		t.Fatalf("round-trip changed shape: %d/%d nodes, %d/%d tabs",
			len(before.Nodes), len(after.Nodes), len(before.Tabs), len(after.Tabs))
	}
	sword, ok := after.Node("wooden_sword")
	if !ok {
		t.Fatalf("wooden_sword missing after round-trip")
	}
	if sword.TabID != "basics" {
		t.Fatalf("tab assignment lost: %q", sword.TabID)
	}
	if len(sword.RequiredNodeIDs) != 1 || sword.RequiredNodeIDs[0] != "wood_planks" {
		t.Fatalf("availability edge lost: %v", sword.RequiredNodeIDs)
	}
	if len(sword.RequiredRecipeIDs) != 1 || sword.RequiredRecipeIDs[0] != "wood_planks" {
		t.Fatalf("gating edge lost: %v", sword.RequiredRecipeIDs)
	}
}

func TestYAMLSource(t *testing.T) {
	yamlDoc := []byte(`
nodes:
  - id: stone_pick
    recipeId: stone_pick
    studyCost: 1
    availability:
      mode: ALWAYS
tabs:
  - id: tools
    title: Tools
`)
	store, err := NewStore(logging.NopPublisher(), "", memorySource{path: "graph.yaml", data: yamlDoc})
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	node, ok := store.Snapshot().Node("stone_pick")
	if !ok {
		t.Fatalf("yaml node missing")
	}
	if node.StudyCost != 1 {
		t.Fatalf("yaml studyCost lost: %d", node.StudyCost)
	}
}

func hasProblem(problems []Problem, kind ProblemKind) bool {
	for _, p := range problems {
		if p.Kind == kind {
			return true
		}
	}
	return false
}
