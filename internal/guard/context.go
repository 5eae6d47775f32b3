// Package guard enforces gating decisions at the crafting touchpoints:
// recipe match, result-slot render, finalize, and list filtering. The guard
// never throws failures back into the host; a broken collaborator fails open
// so crafting keeps working without gating rather than not at all.
package guard

import "context"

type contextKey int

const activePlayerKey contextKey = iota

// WithActivePlayer records the player whose crafting session triggered the
// current operation. Hosts attach it at the top of each crafting request; the
// guard reads it instead of guessing from ambient state.
func WithActivePlayer(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, activePlayerKey, playerID)
}

// ActivePlayer returns the player bound to the context, if any.
func ActivePlayer(ctx context.Context) (string, bool) {
	playerID, ok := ctx.Value(activePlayerKey).(string)
	if !ok || playerID == "" {
		return "", false
	}
	return playerID, true
}
