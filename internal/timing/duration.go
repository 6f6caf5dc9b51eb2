package timing

import (
	"fmt"
	"time"
)

// UrgentThresholdMinutes is the remaining-time window in which an order or
// timer is flagged urgent on the boards.
const UrgentThresholdMinutes = 5

// ElapsedMinutes returns whole minutes between start and now, floored.
// Never negative: a start instant in the future reports 0.
func ElapsedMinutes(start, now time.Time) int {
	if now.Before(start) {
		return 0
	}
	return int(now.Sub(start) / time.Minute)
}

// RemainingMinutes returns whole minutes between now and target, floored.
// Negative means the target has passed: ten seconds past target is -1, not 0.
func RemainingMinutes(target, now time.Time) int {
	d := target.Sub(now)
	m := d / time.Minute
	if d < 0 && d%time.Minute != 0 {
		m--
	}
	return int(m)
}

// IsUrgent reports whether a remaining-minutes value falls inside the
// urgency window: positive but at most UrgentThresholdMinutes.
func IsUrgent(remainingMinutes int) bool {
	return remainingMinutes > 0 && remainingMinutes <= UrgentThresholdMinutes
}

// IsOverdue reports whether the target has passed for work that is not yet
// complete. Overdue is always derived from the arithmetic, never stored.
func IsOverdue(remainingMinutes int, completed bool) bool {
	return remainingMinutes <= 0 && !completed
}

// FormatCountdown renders a second count as m:ss, with a leading minus for
// negative (overdue) values: -125 -> "-2:05", 65 -> "1:05", 0 -> "0:00".
func FormatCountdown(totalSeconds int) string {
	sign := ""
	if totalSeconds < 0 {
		sign = "-"
		totalSeconds = -totalSeconds
	}
	return fmt.Sprintf("%s%d:%02d", sign, totalSeconds/60, totalSeconds%60)
}
