package economy

import "math"

// Curve describes the experience required per level. The requirement is
// strictly increasing in the level so leveling stays monotonic.
type Curve struct {
	BaseExperience      float64
	Growth              float64
	BonusPointsPerLevel int
	BonusPointsType     PointsType
}

// DefaultCurve mirrors the balance used by the stock progression config:
// 100 experience for level 1, growing 15% per level, one learning point per
// level gained.
func DefaultCurve() Curve {
	return Curve{
		BaseExperience:      100,
		Growth:              1.15,
		BonusPointsPerLevel: 1,
		BonusPointsType:     PointsLearning,
	}
}

// RequiredForLevel returns the experience needed to advance past the level.
func (c Curve) RequiredForLevel(level int) float64 {
	if level < 1 {
		level = 1
	}
	base := c.BaseExperience
	if base <= 0 {
		base = 100
	}
	growth := c.Growth
	if growth <= 1 {
		growth = 1.15
	}
	return base * math.Pow(growth, float64(level-1))
}
