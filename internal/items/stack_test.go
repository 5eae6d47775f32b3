package items

import "testing"

func TestInventoryAddMergesMatchingStacks(t *testing.T) {
	inv := NewInventory()
	if overflow := inv.Add(Stack{Type: "iron_ingot", FungibilityKey: "iron_ingot|1", Quantity: 3}); !overflow.IsZero() {
		t.Fatalf("unexpected overflow: %+v", overflow)
	}
	if overflow := inv.Add(Stack{Type: "iron_ingot", FungibilityKey: "iron_ingot|1", Quantity: 2}); !overflow.IsZero() {
		t.Fatalf("unexpected overflow: %+v", overflow)
	}
	if len(inv.Slots) != 1 {
		t.Fatalf("expected merged slot, got %d slots", len(inv.Slots))
	}
	if got := inv.Quantity(Stack{Type: "iron_ingot", FungibilityKey: "iron_ingot|1"}); got != 5 {
		t.Fatalf("expected quantity 5, got %d", got)
	}
}

func TestInventoryAddKeepsMetadataVariantsApart(t *testing.T) {
	inv := NewInventory()
	inv.Add(Stack{Type: "sword", FungibilityKey: "sword|1", Quantity: 1})
	inv.Add(Stack{Type: "sword", FungibilityKey: "sword|2", Quantity: 1})
	if len(inv.Slots) != 2 {
		t.Fatalf("expected distinct slots for metadata variants, got %d", len(inv.Slots))
	}
}

func TestInventoryAddRespectsCapacity(t *testing.T) {
	inv := Inventory{Capacity: 1}
	inv.Add(Stack{Type: "stone", FungibilityKey: "stone|0", Quantity: 4})
	overflow := inv.Add(Stack{Type: "wood", FungibilityKey: "wood|0", Quantity: 2})
	if overflow.IsZero() {
		t.Fatalf("expected overflow when capacity exhausted")
	}
	if overflow.Quantity != 2 || overflow.Type != "wood" {
		t.Fatalf("unexpected overflow stack: %+v", overflow)
	}
}

func TestInventoryRemoveDrainsAcrossSlots(t *testing.T) {
	inv := Inventory{Slots: []Slot{
		{Slot: 0, Item: Stack{Type: "plank", FungibilityKey: "plank|0", Quantity: 2}},
		{Slot: 1, Item: Stack{Type: "stone", FungibilityKey: "stone|0", Quantity: 1}},
		{Slot: 2, Item: Stack{Type: "plank", FungibilityKey: "plank|0", Quantity: 3}},
	}}
	removed := inv.Remove(Stack{Type: "plank", FungibilityKey: "plank|0"}, 4)
	if removed != 4 {
		t.Fatalf("expected 4 removed, got %d", removed)
	}
	if got := inv.Quantity(Stack{Type: "plank", FungibilityKey: "plank|0"}); got != 1 {
		t.Fatalf("expected 1 plank left, got %d", got)
	}
	if got := inv.Quantity(Stack{Type: "stone", FungibilityKey: "stone|0"}); got != 1 {
		t.Fatalf("stone slot should be untouched, got %d", got)
	}
}

func TestInventoryRemoveShortfall(t *testing.T) {
	inv := Inventory{Slots: []Slot{
		{Slot: 0, Item: Stack{Type: "plank", FungibilityKey: "plank|0", Quantity: 2}},
	}}
	removed := inv.Remove(Stack{Type: "plank", FungibilityKey: "plank|0"}, 5)
	if removed != 2 {
		t.Fatalf("expected shortfall removal of 2, got %d", removed)
	}
	if len(inv.Slots) != 0 {
		t.Fatalf("emptied slot should be dropped, got %d slots", len(inv.Slots))
	}
}
