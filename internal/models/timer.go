package models

import (
	"time"

	"expeditor/internal/timing"
)

// Timer represents a countdown, either attached to an order or standalone
type Timer struct {
	ID              string        `json:"id"`
	OrderID         string        `json:"order_id,omitempty"`
	Label           string        `json:"label,omitempty"`
	Category        TimerCategory `json:"category"`
	DurationSeconds int           `json:"duration_seconds"`
	Status          TimerStatus   `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	PausedAt        *time.Time    `json:"paused_at,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
	UpdatedBy       string        `json:"updated_by,omitempty"`

	Provenance Provenance `json:"-"`
}

// TimerStatus represents the possible states of a timer
type TimerStatus string

const (
	TimerStatusRunning   TimerStatus = "running"
	TimerStatusPaused    TimerStatus = "paused"
	TimerStatusCompleted TimerStatus = "completed"
	TimerStatusOverdue   TimerStatus = "overdue"
)

// TimerCategory represents what the timer is tracking
type TimerCategory string

const (
	TimerCategoryCooking TimerCategory = "cooking"
	TimerCategoryPrep    TimerCategory = "prep"
	TimerCategoryResting TimerCategory = "resting"
	TimerCategoryHolding TimerCategory = "holding"
	TimerCategoryCustom  TimerCategory = "custom"
)

// IsTimerStatusValid checks if a timer status is valid
func IsTimerStatusValid(status string) bool {
	validStatuses := map[TimerStatus]bool{
		TimerStatusRunning:   true,
		TimerStatusPaused:    true,
		TimerStatusCompleted: true,
		TimerStatusOverdue:   true,
	}
	return validStatuses[TimerStatus(status)]
}

// IsTimerCategoryValid checks if a timer category is valid
func IsTimerCategoryValid(category string) bool {
	validCategories := map[TimerCategory]bool{
		TimerCategoryCooking: true,
		TimerCategoryPrep:    true,
		TimerCategoryResting: true,
		TimerCategoryHolding: true,
		TimerCategoryCustom:  true,
	}
	return validCategories[TimerCategory(category)]
}

// Elapsed returns how long the timer has been running. While paused the
// value is frozen at the pause instant; resuming re-bases StartedAt so the
// value picks up where it stopped.
func (t *Timer) Elapsed(now time.Time) time.Duration {
	if t.PausedAt != nil {
		return t.PausedAt.Sub(t.StartedAt)
	}
	if now.Before(t.StartedAt) {
		return 0
	}
	return now.Sub(t.StartedAt)
}

// Deadline returns the instant the timer is due.
func (t *Timer) Deadline() time.Time {
	return t.StartedAt.Add(time.Duration(t.DurationSeconds) * time.Second)
}

// RemainingSeconds returns whole seconds until the deadline; negative once
// the timer is overdue.
func (t *Timer) RemainingSeconds(now time.Time) int {
	return t.DurationSeconds - int(t.Elapsed(now)/time.Second)
}

// RemainingMinutes returns whole minutes until the deadline via the shared
// duration model.
func (t *Timer) RemainingMinutes(now time.Time) int {
	if t.PausedAt != nil {
		now = *t.PausedAt
	}
	return timing.RemainingMinutes(t.Deadline(), now)
}

// Countdown renders the remaining time as m:ss for the timer board.
func (t *Timer) Countdown(now time.Time) string {
	return timing.FormatCountdown(t.RemainingSeconds(now))
}
