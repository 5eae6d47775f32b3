package economy

import "testing"

func TestSpendInsufficientLeavesLedgerUntouched(t *testing.T) {
	ledger := NewLedger()
	ledger.Earn(PointsLearning, 5)
	if ledger.Spend(PointsLearning, 10) {
		t.Fatalf("spend should fail with balance 5 and cost 10")
	}
	if got := ledger.Balance(PointsLearning); got != 5 {
		t.Fatalf("balance mutated on failed spend: %d", got)
	}
}

func TestSpendDebitsExactly(t *testing.T) {
	ledger := NewLedger()
	ledger.Earn(PointsLearning, 10)
	if !ledger.Spend(PointsLearning, 10) {
		t.Fatalf("spend should succeed at exact balance")
	}
	if got := ledger.Balance(PointsLearning); got != 0 {
		t.Fatalf("expected zero balance, got %d", got)
	}
	if ledger.Spend(PointsLearning, 1) {
		t.Fatalf("spend from zero balance should fail")
	}
}

func TestEarnAppliesMultiplierAtEarnTime(t *testing.T) {
	ledger := NewLedger()
	ledger.Multipliers[PointsCrafting] = 2
	credited := ledger.Earn(PointsCrafting, 3)
	if credited != 6 {
		t.Fatalf("expected 6 credited with x2 multiplier, got %d", credited)
	}

	// Raising the multiplier later must not touch the existing balance.
	ledger.Multipliers[PointsCrafting] = 10
	if got := ledger.Balance(PointsCrafting); got != 6 {
		t.Fatalf("multiplier applied retroactively: %d", got)
	}
}

func TestCurveStrictlyIncreases(t *testing.T) {
	curve := DefaultCurve()
	prev := 0.0
	for level := 1; level <= 40; level++ {
		required := curve.RequiredForLevel(level)
		if required <= prev {
			t.Fatalf("curve not strictly increasing at level %d: %f <= %f", level, required, prev)
		}
		prev = required
	}
}

func TestAddExperienceCrossesMultipleLevels(t *testing.T) {
	ledger := NewLedger()
	curve := Curve{BaseExperience: 10, Growth: 2, BonusPointsPerLevel: 2, BonusPointsType: PointsLearning}

	// 10 + 20 = 30 experience covers levels 1 and 2 exactly.
	result := ledger.AddExperience(PointsCrafting, 30, curve)
	if result.FromLevel != 1 || result.ToLevel != 3 {
		t.Fatalf("expected 1 -> 3, got %d -> %d", result.FromLevel, result.ToLevel)
	}
	if result.BonusPoints != 4 {
		t.Fatalf("expected 4 bonus points for two levels, got %d", result.BonusPoints)
	}
	if ledger.CurrentLevelExperience != 0 {
		t.Fatalf("expected zero carryover, got %f", ledger.CurrentLevelExperience)
	}
	if ledger.Level != 3 {
		t.Fatalf("expected level 3, got %d", ledger.Level)
	}
}

func TestLevelsNeverDecrease(t *testing.T) {
	ledger := NewLedger()
	curve := DefaultCurve()
	ledger.AddExperience(PointsCrafting, 500, curve)
	level := ledger.Level
	ledger.AddExperience(PointsCrafting, 0, curve)
	ledger.AddExperience(PointsCrafting, -50, curve)
	if ledger.Level < level {
		t.Fatalf("level decreased from %d to %d", level, ledger.Level)
	}
}

func TestNormalizeRepairsLoadedState(t *testing.T) {
	ledger := &Ledger{Level: 0, Points: map[PointsType]int{PointsLearning: -3}}
	ledger.Normalize()
	if ledger.Level != 1 {
		t.Fatalf("expected level clamp to 1, got %d", ledger.Level)
	}
	if ledger.Balance(PointsLearning) != 0 {
		t.Fatalf("expected negative balance clamped to 0, got %d", ledger.Balance(PointsLearning))
	}
	if ledger.Multipliers == nil || ledger.ExperienceByType == nil {
		t.Fatalf("expected maps allocated")
	}
}
