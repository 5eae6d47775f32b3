package economy

import (
	"context"

	"craftgate/server/logging"
)

const (
	// EventPointsEarned is emitted whenever a player gains spendable points.
	EventPointsEarned logging.EventType = "economy.points_earned"
	// EventPointsSpent is emitted when a study successfully debits points.
	EventPointsSpent logging.EventType = "economy.points_spent"
	// EventSpendRejected is emitted when a debit fails on insufficient funds.
	EventSpendRejected logging.EventType = "economy.spend_rejected"
	// EventLevelUp is emitted whenever accumulated experience crosses a level threshold.
	EventLevelUp logging.EventType = "economy.level_up"
)

// PointsPayload describes a point balance mutation.
type PointsPayload struct {
	PointsType string `json:"pointsType"`
	Amount     int    `json:"amount"`
	Balance    int    `json:"balance"`
	Reason     string `json:"reason,omitempty"`
}

// LevelUpPayload describes a level transition and its rewards.
type LevelUpPayload struct {
	FromLevel   int    `json:"fromLevel"`
	ToLevel     int    `json:"toLevel"`
	BonusPoints int    `json:"bonusPoints,omitempty"`
	PointsType  string `json:"pointsType,omitempty"`
}

// PointsEarned publishes a point gain event.
func PointsEarned(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload PointsPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPointsEarned,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}

// PointsSpent publishes a successful debit event.
func PointsSpent(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload PointsPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPointsSpent,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}

// SpendRejected publishes a failed debit event.
func SpendRejected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload PointsPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpendRejected,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}

// LevelUp publishes a level transition event.
func LevelUp(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload LevelUpPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLevelUp,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}
