package progression

import (
	"context"
	"sync"

	"craftgate/server/internal/economy"
	"craftgate/server/internal/store"
	"craftgate/server/internal/telemetry"
	"craftgate/server/internal/unlocks"
	"craftgate/server/logging"
	ecolog "craftgate/server/logging/economy"
	proglog "craftgate/server/logging/progression"
	"craftgate/server/progression/graph"
)

// PermissionChecker answers external capability checks for a player.
type PermissionChecker interface {
	Has(playerID, permissionID string) bool
}

// PermissionGranter is implemented by permission backends that can also grant.
// Studying a node with unlock permissions grants them when the backend allows.
type PermissionGranter interface {
	Grant(playerID, permissionID string)
}

type allowAll struct{}

func (allowAll) Has(string, string) bool { return true }

// Config tunes the facade.
type Config struct {
	// GlobalPermissionID gates browsing entirely; players without it see an
	// empty recipe list. Blank disables the global gate.
	GlobalPermissionID string
	// CraftingExperienceEnabled awards crafting experience whenever a player
	// completes a craft through a permitted gated recipe.
	CraftingExperienceEnabled  bool
	CraftingExperiencePerCraft float64
	// RefundFraction applies only to the admin reset operation. Player-driven
	// resets never refund.
	RefundFraction float64
	Curve          economy.Curve
}

// DefaultConfig returns the stock facade tuning.
func DefaultConfig() Config {
	return Config{
		CraftingExperienceEnabled:  true,
		CraftingExperiencePerCraft: 2,
		RefundFraction:             0,
		Curve:                      economy.DefaultCurve(),
	}
}

// Manager composes the graph store, unlock index, economy ledgers, and player
// persistence. It is the only entry point other subsystems call.
type Manager struct {
	cfg     Config
	graph   *graph.Store
	unlocks *unlocks.Index
	players store.PlayerStore
	perms   PermissionChecker
	pub     logging.Publisher
	logger  telemetry.Logger

	mu            sync.Mutex
	ledgers       map[string]*economy.Ledger
	locks         map[string]*sync.Mutex
	missingLogged map[string]struct{}
}

// NewManager wires the facade. A nil permission checker allows everything; a
// nil player store falls back to in-memory persistence.
func NewManager(cfg Config, graphStore *graph.Store, players store.PlayerStore, perms PermissionChecker, pub logging.Publisher, logger telemetry.Logger) *Manager {
	if perms == nil {
		perms = allowAll{}
	}
	if players == nil {
		players = store.NewMemoryStore()
	}
	if pub == nil {
		pub = logging.NopPublisher()
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if cfg.Curve.BaseExperience == 0 {
		cfg.Curve = economy.DefaultCurve()
	}
	return &Manager{
		cfg:           cfg,
		graph:         graphStore,
		unlocks:       unlocks.NewIndex(),
		players:       players,
		perms:         perms,
		pub:           pub,
		logger:        logger,
		ledgers:       make(map[string]*economy.Ledger),
		locks:         make(map[string]*sync.Mutex),
		missingLogged: make(map[string]struct{}),
	}
}

// Unlocks exposes the authoritative studied-fact store.
func (m *Manager) Unlocks() *unlocks.Index {
	return m.unlocks
}

// Graph exposes the graph store for admin tooling.
func (m *Manager) Graph() *graph.Store {
	return m.graph
}

// playerLock serializes mutating operations per player id.
func (m *Manager) playerLock(playerID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[playerID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[playerID] = lock
	}
	return lock
}

func (m *Manager) ledgerFor(playerID string) *economy.Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger, ok := m.ledgers[playerID]
	if !ok {
		ledger = economy.NewLedger()
		m.ledgers[playerID] = ledger
	}
	return ledger
}

// Join loads the player's persisted record into memory.
func (m *Manager) Join(playerID string) error {
	record, found, err := m.players.Load(playerID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	m.unlocks.Restore(playerID, record.StudiedRecipeIDs, record.ResetRecipeIDs)
	ledger := ledgerFromSnapshot(record.Ledger)
	m.mu.Lock()
	m.ledgers[playerID] = ledger
	m.mu.Unlock()
	return nil
}

// Leave persists the player's state and drops it from memory.
func (m *Manager) Leave(playerID string) error {
	lock := m.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()
	if err := m.persist(playerID); err != nil {
		return err
	}
	m.unlocks.Forget(playerID)
	m.mu.Lock()
	delete(m.ledgers, playerID)
	m.mu.Unlock()
	return nil
}

// persist writes the player's record through to the store. Callers hold the
// player lock.
func (m *Manager) persist(playerID string) error {
	studied, reset := m.unlocks.Snapshot(playerID)
	record := store.Record{
		PlayerID:         playerID,
		StudiedRecipeIDs: studied,
		ResetRecipeIDs:   reset,
		Ledger:           ledgerToSnapshot(m.ledgerFor(playerID)),
	}
	if err := m.players.Save(record); err != nil {
		m.logger.Printf("failed to persist player %s: %v", playerID, err)
		return err
	}
	return nil
}

// Entry returns the gating record for the recipe id, if any.
func (m *Manager) Entry(recipeID string) (*Entry, bool) {
	node, ok := m.graph.Snapshot().NodeForRecipe(recipeID)
	if !ok {
		return nil, false
	}
	return EntryFromNode(node), true
}

// IsStudied reports whether the player has studied the recipe.
func (m *Manager) IsStudied(playerID, recipeID string) bool {
	node, ok := m.graph.Snapshot().NodeForRecipe(recipeID)
	if !ok {
		return false
	}
	return m.unlocks.IsStudied(playerID, StudyKey(node))
}

// MayUse answers the single yes/no question every crafting touchpoint asks:
// may this player obtain an output via this recipe. Recipes outside the graph
// are never blocked by omission. "Available to study" is not "permitted to
// craft": an unstudied entry always answers false.
func (m *Manager) MayUse(playerID, recipeID string) bool {
	node, ok := m.graph.Snapshot().NodeForRecipe(recipeID)
	if !ok {
		m.logMissingOnce(recipeID)
		return true
	}
	if !m.unlocks.IsStudied(playerID, StudyKey(node)) {
		return false
	}
	return node.GrantsCraftAccess
}

// logMissingOnce reports an unresolvable recipe lookup once at debug level to
// avoid log spam from hot crafting paths.
func (m *Manager) logMissingOnce(recipeID string) {
	m.mu.Lock()
	_, seen := m.missingLogged[recipeID]
	if !seen {
		m.missingLogged[recipeID] = struct{}{}
	}
	m.mu.Unlock()
	if seen {
		return
	}
	m.pub.Publish(context.Background(), logging.Event{
		Type:     "progression.recipe_outside_graph",
		Actor:    logging.RecipeRef(recipeID),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryProgression,
	})
}

func (m *Manager) snapshotFor(playerID string) PlayerSnapshot {
	return PlayerSnapshot{
		Studied: m.unlocks.StudiedSet(playerID),
		Ledger:  m.ledgerFor(playerID),
		HasPermission: func(permissionID string) bool {
			return m.perms.Has(playerID, permissionID)
		},
	}
}

// resolveNode accepts either a recipe id or a node id.
func (m *Manager) resolveNode(g *graph.Snapshot, id string) (*graph.Node, bool) {
	if node, ok := g.NodeForRecipe(id); ok {
		return node, true
	}
	return g.Node(id)
}

// IsAvailableToStudy reports whether the player could study the recipe right
// now, with the specific denial reason otherwise.
func (m *Manager) IsAvailableToStudy(playerID, id string) (bool, Reason) {
	g := m.graph.Snapshot()
	node, ok := m.resolveNode(g, id)
	if !ok {
		return false, ReasonUnknownRecipe
	}
	return Availability(g, node, m.snapshotFor(playerID))
}

// Study performs the one-shot study transition: availability check, point
// spend, studied mark, one-hop cascade reset of blocked recipes, permission
// grants, and a write-through persist.
func (m *Manager) Study(ctx context.Context, playerID, id string) (bool, Reason) {
	lock := m.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	g := m.graph.Snapshot()
	node, ok := m.resolveNode(g, id)
	if !ok {
		return false, ReasonUnknownRecipe
	}
	actor := logging.PlayerRef(playerID)
	key := StudyKey(node)

	available, reason := Availability(g, node, m.snapshotFor(playerID))
	if !available {
		proglog.StudyDenied(ctx, m.pub, actor, proglog.StudyPayload{
			RecipeID: node.RecipeID, NodeID: node.ID, Cost: node.StudyCost, Reason: reason.Message(),
		})
		return false, reason
	}

	ledger := m.ledgerFor(playerID)
	if node.StudyCost > 0 {
		if !ledger.Spend(economy.PointsLearning, node.StudyCost) {
			ecolog.SpendRejected(ctx, m.pub, actor, ecolog.PointsPayload{
				PointsType: string(economy.PointsLearning), Amount: node.StudyCost,
				Balance: ledger.Balance(economy.PointsLearning), Reason: "study",
			})
			return false, ReasonInsufficientPoints
		}
		ecolog.PointsSpent(ctx, m.pub, actor, ecolog.PointsPayload{
			PointsType: string(economy.PointsLearning), Amount: node.StudyCost,
			Balance: ledger.Balance(economy.PointsLearning), Reason: "study",
		})
	}

	m.unlocks.Study(playerID, key)

	// Mutually exclusive recipes reset one hop; cascades never chain so a
	// malformed graph cannot trigger runaway resets.
	for _, blockedID := range node.BlockingRecipeIDs {
		blocked, ok := g.NodeForRecipe(blockedID)
		if !ok {
			continue
		}
		if m.unlocks.Reset(playerID, StudyKey(blocked)) {
			proglog.BlockingCascade(ctx, m.pub, actor, proglog.CascadePayload{
				StudiedRecipeID: node.RecipeID, ResetRecipeID: blocked.RecipeID,
			})
		}
	}

	// Unlock edges are not traversed here: the availability resolver reads
	// the snapshot's reverse index, so studying this node flips its targets
	// to available without studying them.

	if granter, ok := m.perms.(PermissionGranter); ok {
		for _, permissionID := range node.UnlockPermissions {
			granter.Grant(playerID, permissionID)
		}
	}

	if err := m.persist(playerID); err == nil {
		proglog.StudyGranted(ctx, m.pub, actor, proglog.StudyPayload{
			RecipeID: node.RecipeID, NodeID: node.ID, Cost: node.StudyCost,
		})
	}
	return true, ReasonNone
}

// ResetStudy reverts a studied recipe without refunding its cost.
func (m *Manager) ResetStudy(ctx context.Context, playerID, id string) bool {
	return m.reset(ctx, playerID, id, 0)
}

// AdminReset reverts a studied recipe, refunding the configured fraction of
// its cost. With the default fraction of zero it behaves like ResetStudy.
func (m *Manager) AdminReset(ctx context.Context, playerID, id string) bool {
	return m.reset(ctx, playerID, id, m.cfg.RefundFraction)
}

func (m *Manager) reset(ctx context.Context, playerID, id string, refundFraction float64) bool {
	lock := m.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	g := m.graph.Snapshot()
	node, ok := m.resolveNode(g, id)
	if !ok {
		return false
	}
	if !m.unlocks.Reset(playerID, StudyKey(node)) {
		return false
	}
	refunded := 0
	if refundFraction > 0 {
		refunded = m.ledgerFor(playerID).Refund(economy.PointsLearning, node.StudyCost, refundFraction)
	}
	m.persist(playerID)
	proglog.StudyReset(ctx, m.pub, logging.PlayerRef(playerID), proglog.StudyPayload{
		RecipeID: node.RecipeID, NodeID: node.ID, Cost: refunded,
	})
	return true
}

// GrantPoints credits points directly, bypassing multipliers; admin surface.
func (m *Manager) GrantPoints(ctx context.Context, playerID string, t economy.PointsType, amount int) {
	if amount <= 0 {
		return
	}
	lock := m.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()
	ledger := m.ledgerFor(playerID)
	ledger.Points[t] += amount
	m.persist(playerID)
	ecolog.PointsEarned(ctx, m.pub, logging.PlayerRef(playerID), ecolog.PointsPayload{
		PointsType: string(t), Amount: amount, Balance: ledger.Balance(t), Reason: "admin_grant",
	})
}

// RevokePoints debits points, clamping at zero; admin surface.
func (m *Manager) RevokePoints(ctx context.Context, playerID string, t economy.PointsType, amount int) {
	if amount <= 0 {
		return
	}
	lock := m.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()
	ledger := m.ledgerFor(playerID)
	if ledger.Points[t] < amount {
		amount = ledger.Points[t]
	}
	ledger.Points[t] -= amount
	m.persist(playerID)
}

// EarnPoints credits points through the normal earning path, applying the
// player's multiplier at earn time.
func (m *Manager) EarnPoints(ctx context.Context, playerID string, t economy.PointsType, amount int, reason string) {
	lock := m.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()
	ledger := m.ledgerFor(playerID)
	credited := ledger.Earn(t, amount)
	if credited == 0 {
		return
	}
	m.persist(playerID)
	ecolog.PointsEarned(ctx, m.pub, logging.PlayerRef(playerID), ecolog.PointsPayload{
		PointsType: string(t), Amount: credited, Balance: ledger.Balance(t), Reason: reason,
	})
}

// CraftCompleted feeds crafting experience back into the ledger when a player
// finishes a craft through a permitted gated recipe.
func (m *Manager) CraftCompleted(ctx context.Context, playerID, recipeID string, quantity int) {
	if !m.cfg.CraftingExperienceEnabled || quantity <= 0 {
		return
	}
	if _, ok := m.graph.Snapshot().NodeForRecipe(recipeID); !ok {
		return
	}
	if !m.MayUse(playerID, recipeID) {
		return
	}
	lock := m.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()
	ledger := m.ledgerFor(playerID)
	result := ledger.AddExperience(economy.PointsCrafting, m.cfg.CraftingExperiencePerCraft*float64(quantity), m.cfg.Curve)
	if result.Leveled() {
		ecolog.LevelUp(ctx, m.pub, logging.PlayerRef(playerID), ecolog.LevelUpPayload{
			FromLevel: result.FromLevel, ToLevel: result.ToLevel,
			BonusPoints: result.BonusPoints, PointsType: string(m.cfg.Curve.BonusPointsType),
		})
	}
	m.persist(playerID)
}

// HasGlobalPermission reports whether the player may browse gated recipes at
// all. Blank config disables the global gate.
func (m *Manager) HasGlobalPermission(playerID string) bool {
	if m.cfg.GlobalPermissionID == "" {
		return true
	}
	return m.perms.Has(playerID, m.cfg.GlobalPermissionID)
}

// Dynamic classification tags computed per player at list time.
const (
	TagStudied    = "studied"
	TagNotStudied = "not-studied"
)

// ListRecipes returns the entries the player is permitted to see, filtered by
// tags. The global permission fails closed: without it the list is empty no
// matter the per-recipe state.
func (m *Manager) ListRecipes(playerID string, filterTags ...string) []*Entry {
	if !m.HasGlobalPermission(playerID) {
		return nil
	}
	g := m.graph.Snapshot()
	out := make([]*Entry, 0)
	for _, nodeID := range g.NodeIDs() {
		node := g.Nodes[nodeID]
		if node.IsCustom() {
			continue
		}
		if !m.MayUse(playerID, node.RecipeID) {
			continue
		}
		entry := EntryFromNode(node)
		if !m.matchesTags(playerID, entry, filterTags) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func (m *Manager) matchesTags(playerID string, entry *Entry, filterTags []string) bool {
	for _, tag := range filterTags {
		switch tag {
		case TagStudied:
			if !m.unlocks.IsStudied(playerID, entry.ID) {
				return false
			}
		case TagNotStudied:
			if m.unlocks.IsStudied(playerID, entry.ID) {
				return false
			}
		default:
			if !entry.HasTag(tag) {
				return false
			}
		}
	}
	return true
}

// NodeState is the recomputed per-player state of one graph node. Only
// STUDIED is ever persisted; LOCKED and AVAILABLE are derived on demand.
type NodeState string

const (
	NodeLocked    NodeState = "LOCKED"
	NodeAvailable NodeState = "AVAILABLE"
	NodeStudied   NodeState = "STUDIED"
)

// NodeStatus pairs a node with its recomputed state for UI consumption.
type NodeStatus struct {
	NodeID   string    `json:"nodeId"`
	RecipeID string    `json:"recipeId,omitempty"`
	TabID    string    `json:"tabId"`
	State    NodeState `json:"state"`
	Reason   string    `json:"reason,omitempty"`
}

// PlayerProgress returns every node's state for the player, sorted by node id.
func (m *Manager) PlayerProgress(playerID string) []NodeStatus {
	g := m.graph.Snapshot()
	snap := m.snapshotFor(playerID)
	out := make([]NodeStatus, 0, len(g.Nodes))
	for _, nodeID := range g.NodeIDs() {
		node := g.Nodes[nodeID]
		status := NodeStatus{NodeID: node.ID, RecipeID: node.RecipeID, TabID: node.TabID}
		if snap.studied(StudyKey(node)) {
			status.State = NodeStudied
		} else if available, reason := Availability(g, node, snap); available {
			status.State = NodeAvailable
		} else {
			status.State = NodeLocked
			status.Reason = reason.Message()
		}
		out = append(out, status)
	}
	return out
}

// ReloadGraph re-reads the graph sources and swaps the snapshot atomically.
func (m *Manager) ReloadGraph() error {
	return m.graph.Reload()
}

// Problems returns the defects recorded by the last graph load.
func (m *Manager) Problems() []graph.Problem {
	return append([]graph.Problem(nil), m.graph.Snapshot().Problems...)
}

func ledgerToSnapshot(ledger *economy.Ledger) store.LedgerSnapshot {
	snapshot := store.LedgerSnapshot{
		Level:                  ledger.Level,
		TotalExperience:        ledger.TotalExperience,
		CurrentLevelExperience: ledger.CurrentLevelExperience,
		Points:                 make(map[string]int, len(ledger.Points)),
		ExperienceByType:       make(map[string]float64, len(ledger.ExperienceByType)),
		Multipliers:            make(map[string]float64, len(ledger.Multipliers)),
	}
	for t, v := range ledger.Points {
		snapshot.Points[string(t)] = v
	}
	for t, v := range ledger.ExperienceByType {
		snapshot.ExperienceByType[string(t)] = v
	}
	for t, v := range ledger.Multipliers {
		snapshot.Multipliers[string(t)] = v
	}
	return snapshot
}

func ledgerFromSnapshot(snapshot store.LedgerSnapshot) *economy.Ledger {
	ledger := economy.NewLedger()
	ledger.Level = snapshot.Level
	ledger.TotalExperience = snapshot.TotalExperience
	ledger.CurrentLevelExperience = snapshot.CurrentLevelExperience
	for t, v := range snapshot.Points {
		ledger.Points[economy.PointsType(t)] = v
	}
	for t, v := range snapshot.ExperienceByType {
		ledger.ExperienceByType[economy.PointsType(t)] = v
	}
	for t, v := range snapshot.Multipliers {
		ledger.Multipliers[economy.PointsType(t)] = v
	}
	ledger.Normalize()
	return ledger
}

// Ledger returns a copy of the player's ledger for display surfaces.
func (m *Manager) Ledger(playerID string) store.LedgerSnapshot {
	return ledgerToSnapshot(m.ledgerFor(playerID))
}
