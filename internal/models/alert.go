package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the comparison direction of an alert predicate.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Valid reports whether the direction is one of the supported values.
func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// AlertStatus represents the lifecycle state of a condition.
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusTriggered AlertStatus = "triggered"
	AlertStatusDisabled  AlertStatus = "disabled"
)

// Predicate is the user-defined trigger rule: fire when the observed
// price is strictly above or strictly below the threshold.
type Predicate struct {
	Direction Direction `bson:"direction" json:"direction"`
	Threshold float64   `bson:"threshold" json:"threshold"`
}

// Condition is a tracked price alert. The engine reads conditions from
// the repository and writes back status changes through it; it never
// mutates a Condition in place.
type Condition struct {
	ID          string      `bson:"_id" json:"id"`
	OwnerID     string      `bson:"owner_id" json:"owner_id"`
	Symbol      string      `bson:"symbol" json:"symbol"`
	Predicate   Predicate   `bson:"predicate" json:"predicate"`
	Status      AlertStatus `bson:"status" json:"status"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	TriggeredAt *time.Time  `bson:"triggered_at,omitempty" json:"triggered_at,omitempty"`
}

// CreateAlertRequest is the admin API payload for creating an alert.
type CreateAlertRequest struct {
	OwnerID   string  `json:"owner_id"`
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Threshold float64 `json:"threshold"`
}

// ToCondition converts the request into an unsaved Condition.
func (r *CreateAlertRequest) ToCondition() *Condition {
	return &Condition{
		OwnerID: strings.TrimSpace(r.OwnerID),
		Symbol:  strings.TrimSpace(r.Symbol),
		Predicate: Predicate{
			Direction: Direction(strings.ToLower(strings.TrimSpace(r.Direction))),
			Threshold: r.Threshold,
		},
	}
}

// Validate checks the fields the conversational layer is allowed to set.
func (c *Condition) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if !c.Predicate.Direction.Valid() {
		return fmt.Errorf("unknown predicate direction %q", c.Predicate.Direction)
	}
	if c.Predicate.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %v", c.Predicate.Threshold)
	}
	return nil
}
