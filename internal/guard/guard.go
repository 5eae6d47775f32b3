package guard

import (
	"context"
	"fmt"

	"craftgate/server/internal/items"
	"craftgate/server/logging"
	proglog "craftgate/server/logging/progression"
)

// Gatekeeper is the slice of the progression facade the guard needs. Accepting
// the interface keeps the guard testable with a stub and free of an import
// cycle with the manager.
type Gatekeeper interface {
	MayUse(playerID, recipeID string) bool
	HasGlobalPermission(playerID string) bool
	CraftCompleted(ctx context.Context, playerID, recipeID string, quantity int)
}

// Guard wraps a Gatekeeper with the touchpoint semantics the crafting host
// calls into.
type Guard struct {
	gate Gatekeeper
	pub  logging.Publisher
}

// New constructs a Guard. A nil publisher discards events.
func New(gate Gatekeeper, pub logging.Publisher) *Guard {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Guard{gate: gate, pub: pub}
}

// MayUse answers the core gating question for the context's active player.
// Fail-open rules: no active player means no decision to make, and a panic in
// the gate must never break crafting, so both answer true. The fail-open path
// is loud, never silent.
func (g *Guard) MayUse(ctx context.Context, recipeID string) (allowed bool) {
	playerID, ok := ActivePlayer(ctx)
	if !ok {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			proglog.GuardFailOpen(ctx, g.pub, logging.PlayerRef(playerID), recipeID, fmt.Sprint(r))
			allowed = true
		}
	}()
	return g.gate.MayUse(playerID, recipeID)
}

// OnRecipeMatch intercepts the host's recipe-match result. A matched recipe
// the player may not use un-matches; unmatched stays unmatched.
func (g *Guard) OnRecipeMatch(ctx context.Context, recipeID string, matched bool) bool {
	if !matched {
		return false
	}
	return g.MayUse(ctx, recipeID)
}

// OnRenderResultSlot clears the preview output for recipes the player may not
// use, so the crafting UI never advertises an unobtainable result.
func (g *Guard) OnRenderResultSlot(ctx context.Context, recipeID string, output items.Stack) items.Stack {
	if g.MayUse(ctx, recipeID) {
		return output
	}
	return items.Stack{}
}

// FilterRecipes returns the subset of recipe ids the player may use. Unlike
// the per-recipe checks this surface fails closed: without an active player
// or the global browse permission, nothing lists.
func (g *Guard) FilterRecipes(ctx context.Context, recipeIDs []string) []string {
	playerID, ok := ActivePlayer(ctx)
	if !ok {
		return nil
	}
	if !g.gate.HasGlobalPermission(playerID) {
		return nil
	}
	out := make([]string, 0, len(recipeIDs))
	for _, recipeID := range recipeIDs {
		if g.MayUse(ctx, recipeID) {
			out = append(out, recipeID)
		}
	}
	return out
}
