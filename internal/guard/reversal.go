package guard

import (
	"context"

	"craftgate/server/internal/items"
	"craftgate/server/logging"
	proglog "craftgate/server/logging/progression"
)

// CraftEvent is the host's view of a finished craft, handed to the guard at
// finalize time. The guard mutates it in place when the craft must be undone.
type CraftEvent struct {
	RecipeID string
	// Crafted is the output count the host is about to credit.
	Crafted int
	// Output identifies the crafted stack so the reversal can find and remove
	// matching items.
	Output items.Stack
	// Cursor is the stack on the player's cursor, checked before the inventory.
	Cursor *items.Stack
	// Inventory is the player's main inventory.
	Inventory *items.Inventory
	// Grid holds the ingredients consumed from the crafting grid.
	Grid []items.Stack
	// Dropped collects returned ingredients that did not fit anywhere.
	Dropped []items.Stack
}

// OnCraftFinalized undoes a craft that slipped past the earlier touchpoints,
// typically after a concurrent reset or reload revoked access mid-craft. The
// reversal is best-effort: it removes up to the crafted quantity of output
// items from cursor then inventory, returns the grid ingredients, and
// tolerates shortfalls when the player already moved the items.
func (g *Guard) OnCraftFinalized(ctx context.Context, event *CraftEvent) {
	if event == nil || event.Crafted <= 0 {
		return
	}
	if g.MayUse(ctx, event.RecipeID) {
		playerID, ok := ActivePlayer(ctx)
		if ok {
			g.gate.CraftCompleted(ctx, playerID, event.RecipeID, event.Crafted)
		}
		return
	}

	quantity := event.Crafted
	event.Crafted = 0

	removed := 0
	if event.Cursor != nil && event.Cursor.Matches(event.Output) {
		take := quantity
		if take > event.Cursor.Quantity {
			take = event.Cursor.Quantity
		}
		event.Cursor.Quantity -= take
		if event.Cursor.Quantity <= 0 {
			*event.Cursor = items.Stack{}
		}
		removed += take
	}
	if removed < quantity && event.Inventory != nil {
		removed += event.Inventory.Remove(event.Output, quantity-removed)
	}

	// Ingredients go back to the inventory; whatever does not fit drops.
	dropped := 0
	for i, ingredient := range event.Grid {
		if ingredient.IsZero() {
			continue
		}
		if event.Inventory != nil {
			if overflow := event.Inventory.Add(ingredient); !overflow.IsZero() {
				event.Dropped = append(event.Dropped, overflow)
				dropped += overflow.Quantity
			}
		} else {
			event.Dropped = append(event.Dropped, ingredient)
			dropped += ingredient.Quantity
		}
		event.Grid[i] = items.Stack{}
	}

	playerID, _ := ActivePlayer(ctx)
	proglog.CraftReverted(ctx, g.pub, logging.PlayerRef(playerID), proglog.CraftRevertedPayload{
		RecipeID:  event.RecipeID,
		Quantity:  quantity,
		Removed:   removed,
		Shortfall: quantity - removed,
		Dropped:   dropped,
	})
}
