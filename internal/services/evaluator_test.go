package services

import (
	"testing"
	"time"

	"price-alert-engine/internal/models"

	"github.com/stretchr/testify/assert"
)

func condition(direction models.Direction, threshold float64) models.Condition {
	return models.Condition{
		ID:      "alert-1",
		OwnerID: "user-1",
		Symbol:  "BTC/USDT",
		Predicate: models.Predicate{
			Direction: direction,
			Threshold: threshold,
		},
		Status: models.AlertStatusActive,
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name      string
		direction models.Direction
		threshold float64
		observed  float64
		triggered bool
	}{
		{"AboveTriggers", models.DirectionAbove, 100000, 100500, true},
		{"AboveBelowThreshold", models.DirectionAbove, 100000, 99000, false},
		{"AboveExactlyAtThreshold", models.DirectionAbove, 100000, 100000, false},
		{"BelowTriggers", models.DirectionBelow, 2500, 2400, true},
		{"BelowAboveThreshold", models.DirectionBelow, 2500, 2600, false},
		{"BelowExactlyAtThreshold", models.DirectionBelow, 2500, 2500, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := condition(tt.direction, tt.threshold)
			result := Evaluate(cond, tt.observed, now)

			assert.Equal(t, tt.triggered, result.Triggered)
			assert.Equal(t, tt.observed, result.ObservedValue)
			assert.Equal(t, now, result.EvaluatedAt)
			assert.Equal(t, cond, result.Condition)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	cond := condition(models.DirectionAbove, 100000)
	now := time.Now().UTC()

	first := Evaluate(cond, 100500, now)
	second := Evaluate(cond, 100500, now)

	assert.Equal(t, first, second)
}

func TestEvaluateUnknownDirectionNeverTriggers(t *testing.T) {
	cond := condition("sideways", 100000)
	result := Evaluate(cond, 200000, time.Now().UTC())

	assert.False(t, result.Triggered)
}
