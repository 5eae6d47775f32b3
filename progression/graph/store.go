package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"craftgate/server/logging"
	proglog "craftgate/server/logging/progression"
)

type source interface {
	Load() ([]byte, error)
	Path() string
}

type fileSource struct {
	path string
}

func (f fileSource) Load() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f fileSource) Path() string {
	return f.path
}

// ProblemKind classifies defects found while loading or editing the graph.
type ProblemKind string

const (
	ProblemMalformed   ProblemKind = "malformed"
	ProblemDuplicateID ProblemKind = "duplicate_id"
	ProblemSelfLoop    ProblemKind = "self_loop"
	ProblemDanglingRef ProblemKind = "dangling_ref"
	ProblemCycle       ProblemKind = "cycle"
)

// Problem records one defect. Loading never aborts over a problem; the
// offending entry is skipped or repaired and the rest of the graph survives.
type Problem struct {
	Kind       ProblemKind
	NodeID     string
	TabID      string
	Ref        string
	Suggestion string
	Detail     string
}

// Snapshot is an immutable view of the loaded graph. Readers always observe a
// complete snapshot; reloads swap the whole pointer.
type Snapshot struct {
	Nodes    map[string]*Node
	Tabs     map[string]*Tab
	ByRecipe map[string]*Node
	Cyclic   map[string]struct{}
	Problems []Problem

	// Reverse unlock indexes: target node id (or tab id) to the source node
	// ids whose study opens it. Built once per snapshot so availability
	// checks never walk the whole node set.
	UnlockedBy   map[string][]string
	TabUnlockers map[string][]string
}

// Node returns the node for the id.
func (s *Snapshot) Node(id string) (*Node, bool) {
	node, ok := s.Nodes[id]
	return node, ok
}

// Tab returns the tab for the id.
func (s *Snapshot) Tab(id string) (*Tab, bool) {
	tab, ok := s.Tabs[id]
	return tab, ok
}

// NodeForRecipe returns the node gating the recipe id, if any.
func (s *Snapshot) NodeForRecipe(recipeID string) (*Node, bool) {
	node, ok := s.ByRecipe[recipeID]
	return node, ok
}

// Unlockers returns the node ids whose study unlocks the target node. An
// empty result means no unlock edge points at the node.
func (s *Snapshot) Unlockers(nodeID string) []string {
	return s.UnlockedBy[nodeID]
}

// NodeIDs returns the node ids in sorted order.
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Store owns the declarative progression graph. Mutations rebuild and swap a
// fresh snapshot; Save persists the whole graph atomically.
type Store struct {
	mu       sync.RWMutex
	sources  []source
	savePath string
	pub      logging.Publisher
	snapshot *Snapshot
}

// DefaultPath is the canonical graph location relative to the module root.
func DefaultPath() string {
	return filepath.Join("config", "progression", "graph.json")
}

// Load constructs a Store backed by the provided file paths. Later sources
// overlay earlier ones; the first path doubles as the save target.
func Load(pub logging.Publisher, paths ...string) (*Store, error) {
	sources := make([]source, 0, len(paths))
	savePath := ""
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if savePath == "" {
			savePath = trimmed
		}
		sources = append(sources, fileSource{path: trimmed})
	}
	return NewStore(pub, savePath, sources...)
}

// NewStore constructs a Store from arbitrary sources. Tests supply in-memory
// sources while production code uses files.
func NewStore(pub logging.Publisher, savePath string, sources ...source) (*Store, error) {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	s := &Store{
		sources:  append([]source(nil), sources...),
		savePath: savePath,
		pub:      pub,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-parses all sources and swaps in the resulting snapshot. Missing
// files are tolerated; unreadable or syntactically broken files are not, since
// silently running with an empty graph would un-gate every recipe.
func (s *Store) Reload() error {
	if s == nil {
		return nil
	}
	var nodes []NodeDocument
	var tabs []TabDocument
	for _, src := range s.sources {
		data, err := src.Load()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("graph: failed loading %s: %w", src.Path(), err)
		}
		doc, err := decodeDocument(src.Path(), data)
		if err != nil {
			return fmt.Errorf("graph: failed parsing %s: %w", src.Path(), err)
		}
		nodes = append(nodes, doc.Nodes...)
		tabs = append(tabs, doc.Tabs...)
	}

	snapshot := buildSnapshot(nodes, tabs)
	s.publishProblems(snapshot.Problems)

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
	return nil
}

// Snapshot returns the current immutable graph view.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// UpsertNode adds or replaces a node and rebuilds the snapshot. A blank id is
// assigned a generated one; the id actually stored is returned.
func (s *Store) UpsertNode(doc NodeDocument) string {
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = uuid.NewString()
	}
	s.mutate(func(nodes map[string]NodeDocument, tabs map[string]TabDocument) {
		nodes[strings.TrimSpace(doc.ID)] = doc
	})
	return strings.TrimSpace(doc.ID)
}

// UpsertTab adds or replaces a tab and rebuilds the snapshot.
func (s *Store) UpsertTab(doc TabDocument) {
	s.mutate(func(nodes map[string]NodeDocument, tabs map[string]TabDocument) {
		id := strings.TrimSpace(doc.ID)
		if id == "" {
			return
		}
		tabs[id] = doc
	})
}

// RemoveNode deletes a node, reporting whether it existed.
func (s *Store) RemoveNode(id string) bool {
	removed := false
	s.mutate(func(nodes map[string]NodeDocument, tabs map[string]TabDocument) {
		if _, ok := nodes[id]; ok {
			delete(nodes, id)
			removed = true
		}
	})
	return removed
}

// RemoveTab deletes a tab, reporting whether it existed. Nodes assigned to the
// removed tab fall back to the default tab on the next snapshot build.
func (s *Store) RemoveTab(id string) bool {
	removed := false
	s.mutate(func(nodes map[string]NodeDocument, tabs map[string]TabDocument) {
		if _, ok := tabs[id]; ok {
			delete(tabs, id)
			removed = true
		}
	})
	return removed
}

func (s *Store) mutate(apply func(nodes map[string]NodeDocument, tabs map[string]TabDocument)) {
	s.mu.Lock()
	current := s.snapshot
	nodes := make(map[string]NodeDocument, len(current.Nodes))
	tabs := make(map[string]TabDocument, len(current.Tabs))
	for id, node := range current.Nodes {
		nodes[id] = nodeToDocument(node)
	}
	for id, tab := range current.Tabs {
		tabs[id] = tabToDocument(tab)
	}
	apply(nodes, tabs)

	nodeList := make([]NodeDocument, 0, len(nodes))
	for _, id := range sortedDocKeys(nodes) {
		nodeList = append(nodeList, nodes[id])
	}
	tabList := make([]TabDocument, 0, len(tabs))
	for _, id := range sortedTabKeys(tabs) {
		tabList = append(tabList, tabs[id])
	}
	snapshot := buildSnapshot(nodeList, tabList)
	s.snapshot = snapshot
	s.mu.Unlock()
	s.publishProblems(snapshot.Problems)
}

// Save persists the whole graph to the save path via a temp file and rename so
// a crash mid-write never leaves a partial document behind.
func (s *Store) Save() error {
	if s.savePath == "" {
		return errors.New("graph: no save path configured")
	}
	doc := s.Export()

	var data []byte
	var err error
	if isYAMLPath(s.savePath) {
		data, err = yaml.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("graph: marshal document: %w", err)
	}

	if dir := filepath.Dir(s.savePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("graph: create config directory: %w", err)
		}
	}
	tmpPath := s.savePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("graph: write temp document: %w", err)
	}
	if err := os.Rename(tmpPath, s.savePath); err != nil {
		return fmt.Errorf("graph: replace document: %w", err)
	}
	return nil
}

// Export rebuilds the document form of the current snapshot, sorted by id so
// saves are deterministic.
func (s *Store) Export() Document {
	snapshot := s.Snapshot()
	doc := Document{
		Nodes: make([]NodeDocument, 0, len(snapshot.Nodes)),
		Tabs:  make([]TabDocument, 0, len(snapshot.Tabs)),
	}
	for _, id := range snapshot.NodeIDs() {
		doc.Nodes = append(doc.Nodes, nodeToDocument(snapshot.Nodes[id]))
	}
	tabIDs := make([]string, 0, len(snapshot.Tabs))
	for id := range snapshot.Tabs {
		tabIDs = append(tabIDs, id)
	}
	sort.Strings(tabIDs)
	for _, id := range tabIDs {
		doc.Tabs = append(doc.Tabs, tabToDocument(snapshot.Tabs[id]))
	}
	return doc
}

func (s *Store) publishProblems(problems []Problem) {
	for _, p := range problems {
		proglog.GraphProblem(context.Background(), s.pub, proglog.GraphProblemPayload{
			Kind:       string(p.Kind),
			NodeID:     p.NodeID,
			TabID:      p.TabID,
			Ref:        p.Ref,
			Suggestion: p.Suggestion,
			Detail:     p.Detail,
		})
	}
}

func decodeDocument(path string, data []byte) (Document, error) {
	var doc Document
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Document{}, err
		}
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func sortedDocKeys(m map[string]NodeDocument) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTabKeys(m map[string]TabDocument) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// suggestID returns the closest known id for a dangling reference, or blank
// when nothing is near enough to be a plausible typo.
func suggestID(ref string, known []string) string {
	best := ""
	bestDistance := 4
	for _, candidate := range known {
		if candidate == ref {
			continue
		}
		distance := levenshtein.ComputeDistance(ref, candidate)
		if distance < bestDistance {
			bestDistance = distance
			best = candidate
		}
	}
	return best
}
