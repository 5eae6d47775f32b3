package guard

import (
	"context"
	"testing"

	"craftgate/server/internal/items"
	"craftgate/server/logging"
	proglog "craftgate/server/logging/progression"
)

type stubGate struct {
	usable    map[string]bool
	global    bool
	panicking bool
	crafts    []string
}

func (s *stubGate) MayUse(playerID, recipeID string) bool {
	if s.panicking {
		panic("gate exploded")
	}
	return s.usable[recipeID]
}

func (s *stubGate) HasGlobalPermission(string) bool { return s.global }

func (s *stubGate) CraftCompleted(_ context.Context, _, recipeID string, _ int) {
	s.crafts = append(s.crafts, recipeID)
}

type capturePublisher struct {
	events []logging.Event
}

func (p *capturePublisher) Publish(_ context.Context, event logging.Event) {
	p.events = append(p.events, event)
}

func playerCtx(playerID string) context.Context {
	return WithActivePlayer(context.Background(), playerID)
}

func TestMayUseWithoutActivePlayerFailsOpen(t *testing.T) {
	g := New(&stubGate{usable: map[string]bool{}}, nil)
	if !g.MayUse(context.Background(), "wooden_sword") {
		t.Fatalf("no active player must not block crafting")
	}
}

func TestMayUseRecoversFromGatePanic(t *testing.T) {
	pub := &capturePublisher{}
	g := New(&stubGate{panicking: true}, pub)

	if !g.MayUse(playerCtx("alice"), "wooden_sword") {
		t.Fatalf("panicking gate must fail open")
	}
	if len(pub.events) != 1 || pub.events[0].Type != proglog.EventGuardFailOpen {
		t.Fatalf("fail-open path must publish, got %+v", pub.events)
	}
}

func TestOnRecipeMatchOnlyDowngrades(t *testing.T) {
	g := New(&stubGate{usable: map[string]bool{"wood_planks": true}}, nil)
	ctx := playerCtx("alice")

	if g.OnRecipeMatch(ctx, "wooden_sword", true) {
		t.Fatalf("denied recipe should un-match")
	}
	if !g.OnRecipeMatch(ctx, "wood_planks", true) {
		t.Fatalf("permitted match should survive")
	}
	if g.OnRecipeMatch(ctx, "wood_planks", false) {
		t.Fatalf("guard must never upgrade an unmatched recipe")
	}
}

func TestOnRenderResultSlotClearsDeniedOutput(t *testing.T) {
	g := New(&stubGate{usable: map[string]bool{}}, nil)
	output := items.Stack{Type: "wooden_sword", Quantity: 1}

	got := g.OnRenderResultSlot(playerCtx("alice"), "wooden_sword", output)
	if !got.IsZero() {
		t.Fatalf("denied preview should be empty, got %+v", got)
	}
}

func TestFilterRecipesFailsClosed(t *testing.T) {
	gate := &stubGate{usable: map[string]bool{"wood_planks": true, "wooden_sword": true}, global: true}
	g := New(gate, nil)
	ids := []string{"wood_planks", "stone_axe", "wooden_sword"}

	got := g.FilterRecipes(playerCtx("alice"), ids)
	if len(got) != 2 || got[0] != "wood_planks" || got[1] != "wooden_sword" {
		t.Fatalf("unexpected filter result %v", got)
	}

	if got := g.FilterRecipes(context.Background(), ids); got != nil {
		t.Fatalf("no active player: list surface fails closed, got %v", got)
	}
	gate.global = false
	if got := g.FilterRecipes(playerCtx("alice"), ids); got != nil {
		t.Fatalf("no global permission: list surface fails closed, got %v", got)
	}
}
