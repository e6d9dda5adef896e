package models

import "time"

// CycleReport aggregates the outcome of one scheduler cycle. It is an
// observability artifact: logged, exposed on the admin surface, never
// used for control decisions.
type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`

	Loaded    int `json:"loaded"`
	Evaluated int `json:"evaluated"`
	Triggered int `json:"triggered"`

	RateLimitTimeouts int `json:"rate_limit_timeouts"`
	TransportFailures int `json:"transport_failures"`
	DeadlineExceeded  int `json:"deadline_exceeded"`

	Notified        int `json:"notified"`
	NotifyFailures  int `json:"notify_failures"`
	PersistFailures int `json:"persist_failures"`

	// Aborted is set when the loading step failed and the whole cycle
	// was skipped.
	Aborted bool   `json:"aborted"`
	Error   string `json:"error,omitempty"`
}
