package services

import (
	"time"

	"price-alert-engine/internal/models"
)

// Evaluate computes the verdict for one condition against one observed
// value. It is deterministic and side-effect-free: comparisons are
// strict, so an observed value exactly equal to the threshold never
// triggers. Re-trigger suppression is the scheduler's job, not this
// function's.
func Evaluate(cond models.Condition, observed float64, at time.Time) models.EvaluationResult {
	triggered := false
	switch cond.Predicate.Direction {
	case models.DirectionAbove:
		triggered = observed > cond.Predicate.Threshold
	case models.DirectionBelow:
		triggered = observed < cond.Predicate.Threshold
	}

	return models.EvaluationResult{
		Condition:     cond,
		Triggered:     triggered,
		ObservedValue: observed,
		EvaluatedAt:   at,
	}
}
