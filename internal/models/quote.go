package models

import "time"

// Quote is a single observed price for a symbol, as returned by the
// upstream transport and cached by the fetch client.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
}

// EvaluationResult is the verdict of evaluating one condition against
// one fresh quote. Transient: produced per cycle, handed to the
// notifier, never persisted by the engine itself.
type EvaluationResult struct {
	Condition     Condition `json:"condition"`
	Triggered     bool      `json:"triggered"`
	ObservedValue float64   `json:"observed_value"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}
