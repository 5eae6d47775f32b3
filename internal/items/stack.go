package items

// ItemType represents a unique identifier for an item kind.
type ItemType = string

// Stack represents a quantity of a specific item type and fungibility key.
// Two stacks merge only when both the type and the fungibility key match, so
// metadata variants (tiers, quality tags) never collapse into each other.
type Stack struct {
	Type           ItemType `json:"type"`
	FungibilityKey string   `json:"fungibility_key"`
	Quantity       int      `json:"quantity"`
}

// Matches reports whether two stacks hold the same item identity.
func (s Stack) Matches(other Stack) bool {
	return s.Type == other.Type && s.FungibilityKey == other.FungibilityKey
}

// IsZero reports whether the stack holds nothing.
func (s Stack) IsZero() bool {
	return s.Type == "" || s.Quantity <= 0
}

// Slot stores an item stack at a specific position.
type Slot struct {
	Slot int   `json:"slot"`
	Item Stack `json:"item"`
}

// Inventory maintains an ordered list of slots. A Capacity of zero means the
// inventory is unbounded.
type Inventory struct {
	Slots    []Slot `json:"slots"`
	Capacity int    `json:"capacity,omitempty"`
}

// NewInventory constructs an empty unbounded inventory.
func NewInventory() Inventory {
	return Inventory{Slots: make([]Slot, 0)}
}

// Clone returns a deep copy suitable for rollback and comparison.
func (inv Inventory) Clone() Inventory {
	cloned := inv
	cloned.Slots = append([]Slot(nil), inv.Slots...)
	return cloned
}

// Quantity returns the total quantity held across slots matching the stack.
func (inv Inventory) Quantity(match Stack) int {
	total := 0
	for _, slot := range inv.Slots {
		if slot.Item.Matches(match) {
			total += slot.Item.Quantity
		}
	}
	return total
}

// Add merges the stack into the first matching slot, or appends a new slot.
// The returned stack holds any overflow that did not fit within Capacity.
func (inv *Inventory) Add(stack Stack) Stack {
	if stack.IsZero() {
		return Stack{}
	}
	for i := range inv.Slots {
		if inv.Slots[i].Item.Matches(stack) {
			inv.Slots[i].Item.Quantity += stack.Quantity
			return Stack{}
		}
	}
	if inv.Capacity > 0 && len(inv.Slots) >= inv.Capacity {
		return stack
	}
	inv.Slots = append(inv.Slots, Slot{Slot: inv.nextSlotIndex(), Item: stack})
	return Stack{}
}

// Remove drains up to quantity units matching the stack identity, scanning
// slots in order and dropping emptied slots. It returns the quantity actually
// removed, which may fall short when the inventory holds less than requested.
func (inv *Inventory) Remove(match Stack, quantity int) int {
	if quantity <= 0 {
		return 0
	}
	removed := 0
	kept := inv.Slots[:0]
	for _, slot := range inv.Slots {
		if removed < quantity && slot.Item.Matches(match) {
			take := quantity - removed
			if take > slot.Item.Quantity {
				take = slot.Item.Quantity
			}
			slot.Item.Quantity -= take
			removed += take
		}
		if slot.Item.Quantity > 0 {
			kept = append(kept, slot)
		}
	}
	inv.Slots = kept
	return removed
}

func (inv *Inventory) nextSlotIndex() int {
	next := 0
	for _, slot := range inv.Slots {
		if slot.Slot >= next {
			next = slot.Slot + 1
		}
	}
	return next
}

// InventoriesEqual reports whether two inventories hold identical slots.
func InventoriesEqual(a, b Inventory) bool {
	if len(a.Slots) != len(b.Slots) {
		return false
	}
	for i := range a.Slots {
		if a.Slots[i] != b.Slots[i] {
			return false
		}
	}
	return true
}
