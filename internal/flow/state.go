package flow

import (
	"time"
)

// Timer defines the interface for scheduling delayed actions such as mock chat replies and
// document analysis results.
type Timer interface {
	// ScheduleAfter schedules a function to run after a delay and returns its ID
	ScheduleAfter(delay time.Duration, fn func()) (string, error)

	// Cancel cancels a scheduled function. Unknown IDs are ignored.
	Cancel(id string) error

	// Stop cancels every pending function
	Stop()
}

// TimerInfo describes a pending scheduled function.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description"`
}
