package economy

import "math"

// PointsType identifies a spendable point pool. Learning points fund studies;
// crafting points accumulate from completed crafts and feed future studies.
type PointsType string

const (
	PointsLearning PointsType = "learning"
	PointsCrafting PointsType = "crafting"
)

// Ledger holds one player's level, experience, and typed point balances.
// Levels never decrease and balances never go negative.
type Ledger struct {
	Level                  int                    `json:"level"`
	TotalExperience        float64                `json:"totalExperience"`
	CurrentLevelExperience float64                `json:"currentLevelExperience"`
	Points                 map[PointsType]int     `json:"points"`
	ExperienceByType       map[PointsType]float64 `json:"experienceByType"`
	Multipliers            map[PointsType]float64 `json:"multipliers"`
}

// NewLedger constructs a level-1 ledger with empty balances.
func NewLedger() *Ledger {
	return &Ledger{
		Level:            1,
		Points:           make(map[PointsType]int),
		ExperienceByType: make(map[PointsType]float64),
		Multipliers:      make(map[PointsType]float64),
	}
}

// Normalize repairs a ledger loaded from persistence so invariants hold.
func (l *Ledger) Normalize() {
	if l.Level < 1 {
		l.Level = 1
	}
	if l.Points == nil {
		l.Points = make(map[PointsType]int)
	}
	for t, v := range l.Points {
		if v < 0 {
			l.Points[t] = 0
		}
	}
	if l.ExperienceByType == nil {
		l.ExperienceByType = make(map[PointsType]float64)
	}
	if l.Multipliers == nil {
		l.Multipliers = make(map[PointsType]float64)
	}
}

// Balance returns the current balance for the point type.
func (l *Ledger) Balance(t PointsType) int {
	return l.Points[t]
}

// Multiplier returns the earning multiplier for the point type, defaulting to 1.
func (l *Ledger) Multiplier(t PointsType) float64 {
	if m, ok := l.Multipliers[t]; ok && m > 0 {
		return m
	}
	return 1
}

// Earn credits points of the given type. The multiplier applies at the point
// of earning, never retroactively. Returns the credited amount.
func (l *Ledger) Earn(t PointsType, amount int) int {
	if amount <= 0 {
		return 0
	}
	credited := int(math.Floor(float64(amount) * l.Multiplier(t)))
	if credited < 1 {
		credited = 1
	}
	l.Points[t] += credited
	return credited
}

// Spend debits points of the given type. Returns false and leaves the ledger
// untouched when the balance is insufficient.
func (l *Ledger) Spend(t PointsType, amount int) bool {
	if amount < 0 {
		return false
	}
	if l.Points[t] < amount {
		return false
	}
	l.Points[t] -= amount
	return true
}

// Refund credits back a fraction of a previously spent amount, rounding down.
func (l *Ledger) Refund(t PointsType, spent int, fraction float64) int {
	if spent <= 0 || fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}
	refunded := int(math.Floor(float64(spent) * fraction))
	l.Points[t] += refunded
	return refunded
}

// LevelUpResult reports level transitions caused by an experience gain.
type LevelUpResult struct {
	FromLevel   int
	ToLevel     int
	BonusPoints int
}

// Leveled reports whether at least one threshold was crossed.
func (r LevelUpResult) Leveled() bool {
	return r.ToLevel > r.FromLevel
}

// AddExperience credits experience of the given type, applying the type
// multiplier, and advances the level across every threshold crossed. Bonus
// points configured on the curve are credited per level gained.
func (l *Ledger) AddExperience(t PointsType, amount float64, curve Curve) LevelUpResult {
	result := LevelUpResult{FromLevel: l.Level, ToLevel: l.Level}
	if amount <= 0 {
		return result
	}
	gained := amount * l.Multiplier(t)
	l.ExperienceByType[t] += gained
	l.TotalExperience += gained
	l.CurrentLevelExperience += gained

	for l.CurrentLevelExperience >= curve.RequiredForLevel(l.Level) {
		l.CurrentLevelExperience -= curve.RequiredForLevel(l.Level)
		l.Level++
		if curve.BonusPointsPerLevel > 0 {
			l.Points[curve.BonusPointsType] += curve.BonusPointsPerLevel
			result.BonusPoints += curve.BonusPointsPerLevel
		}
	}
	result.ToLevel = l.Level
	return result
}
