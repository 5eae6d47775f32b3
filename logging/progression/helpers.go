package progression

import (
	"context"

	"craftgate/server/logging"
)

const (
	// EventStudyGranted is emitted when a player successfully studies a recipe.
	EventStudyGranted logging.EventType = "progression.study_granted"
	// EventStudyDenied is emitted when a study attempt fails its checks.
	EventStudyDenied logging.EventType = "progression.study_denied"
	// EventStudyReset is emitted when a studied recipe reverts to unstudied.
	EventStudyReset logging.EventType = "progression.study_reset"
	// EventBlockingCascade is emitted when studying one recipe resets another.
	EventBlockingCascade logging.EventType = "progression.blocking_cascade"
	// EventCraftReverted is emitted when the finalize guard undoes a craft.
	EventCraftReverted logging.EventType = "progression.craft_reverted"
	// EventGuardFailOpen is emitted when a gating decision recovers from a panic.
	EventGuardFailOpen logging.EventType = "progression.guard_fail_open"
	// EventGraphProblem is emitted for each entry skipped or repaired at load.
	EventGraphProblem logging.EventType = "progression.graph_problem"
)

// StudyPayload describes a study transition or denial.
type StudyPayload struct {
	RecipeID string `json:"recipeId"`
	NodeID   string `json:"nodeId,omitempty"`
	Cost     int    `json:"cost,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// CascadePayload describes a one-hop blocking reset.
type CascadePayload struct {
	StudiedRecipeID string `json:"studiedRecipeId"`
	ResetRecipeID   string `json:"resetRecipeId"`
}

// CraftRevertedPayload describes a finalize-time reversal.
type CraftRevertedPayload struct {
	RecipeID  string `json:"recipeId"`
	Quantity  int    `json:"quantity"`
	Removed   int    `json:"removed"`
	Shortfall int    `json:"shortfall,omitempty"`
	Dropped   int    `json:"dropped,omitempty"`
}

// GraphProblemPayload describes a configuration defect found at load time.
type GraphProblemPayload struct {
	Kind       string `json:"kind"`
	NodeID     string `json:"nodeId,omitempty"`
	TabID      string `json:"tabId,omitempty"`
	Ref        string `json:"ref,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// StudyGranted publishes a successful study event.
func StudyGranted(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload StudyPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStudyGranted,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.RecipeRef(payload.RecipeID)},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryProgression,
		Payload:  payload,
	})
}

// StudyDenied publishes a denied study event with its specific reason.
func StudyDenied(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload StudyPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStudyDenied,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.RecipeRef(payload.RecipeID)},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryProgression,
		Payload:  payload,
	})
}

// StudyReset publishes a reset event.
func StudyReset(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload StudyPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStudyReset,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.RecipeRef(payload.RecipeID)},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryProgression,
		Payload:  payload,
	})
}

// BlockingCascade publishes a one-hop cascade reset event.
func BlockingCascade(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload CascadePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBlockingCascade,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.RecipeRef(payload.ResetRecipeID)},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryProgression,
		Payload:  payload,
	})
}

// CraftReverted publishes a finalize reversal event. Shortfalls are warnings;
// clean reversals are informational.
func CraftReverted(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload CraftRevertedPayload) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if payload.Shortfall > 0 {
		severity = logging.SeverityWarn
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCraftReverted,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.RecipeRef(payload.RecipeID)},
		Severity: severity,
		Category: logging.CategoryProgression,
		Payload:  payload,
	})
}

// GuardFailOpen publishes a recovered gating panic.
func GuardFailOpen(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, recipeID string, detail string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGuardFailOpen,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.RecipeRef(recipeID)},
		Severity: logging.SeverityError,
		Category: logging.CategoryProgression,
		Payload:  map[string]string{"detail": detail},
	})
}

// GraphProblem publishes a configuration defect.
func GraphProblem(ctx context.Context, pub logging.Publisher, payload GraphProblemPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGraphProblem,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSystem},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryConfig,
		Payload:  payload,
	})
}
