package engine

import (
	"fmt"
	"time"

	"expeditor/internal/models"

	"github.com/google/uuid"
)

// TimerSpec describes a timer to start. A timer attached to an order may
// omit DurationSeconds, in which case the duration runs to the order's
// target-completion instant.
type TimerSpec struct {
	OrderID         string               `json:"order_id,omitempty"`
	Label           string               `json:"label,omitempty"`
	Category        models.TimerCategory `json:"category"`
	DurationSeconds int                  `json:"duration_seconds"`
}

// StartTimer creates a timer in the running state and publishes it.
func (e *Engine) StartTimer(spec TimerSpec, actor string) (models.Timer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	duration := spec.DurationSeconds
	if spec.OrderID != "" {
		o, ok := e.orders[spec.OrderID]
		if !ok {
			return models.Timer{}, fmt.Errorf("order %s: %w", spec.OrderID, ErrNotFound)
		}
		if duration <= 0 {
			duration = int(o.EstimatedCompletionTime.Sub(now) / time.Second)
		}
	}
	if duration <= 0 {
		return models.Timer{}, fmt.Errorf("timer duration must be positive, got %ds", duration)
	}
	category := spec.Category
	if category == "" {
		category = models.TimerCategoryCustom
	}
	if !models.IsTimerCategoryValid(string(category)) {
		return models.Timer{}, fmt.Errorf("unknown timer category %q", category)
	}

	t := &models.Timer{
		ID:              uuid.NewString(),
		OrderID:         spec.OrderID,
		Label:           spec.Label,
		Category:        category,
		DurationSeconds: duration,
		Status:          models.TimerStatusRunning,
		StartedAt:       now,
		UpdatedAt:       now,
		UpdatedBy:       actor,
		Provenance:      models.ProvenanceLocal,
	}
	e.timers[t.ID] = t
	e.recordTransition("timer", string(t.Status))
	e.updateGauges()
	e.publishTimer(t, actor, now, false)
	return *t, nil
}

// PauseTimer freezes a running or overdue timer. Pausing a paused or
// completed timer is a no-op that returns the current state.
func (e *Engine) PauseTimer(timerID, actor string) (models.Timer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.timer(timerID)
	if err != nil {
		return models.Timer{}, err
	}
	if t.Status != models.TimerStatusRunning && t.Status != models.TimerStatusOverdue {
		return *t, nil
	}

	now := e.clock.Now()
	t.Status = models.TimerStatusPaused
	t.PausedAt = &now
	t.UpdatedAt = now
	t.UpdatedBy = actor
	t.Provenance = models.ProvenanceLocal
	e.recordTransition("timer", string(t.Status))
	e.updateGauges()
	e.publishTimer(t, actor, now, false)
	return *t, nil
}

// ResumeTimer restarts a paused timer, re-basing its start instant so the
// elapsed value is preserved. Resuming a non-paused timer is a no-op.
func (e *Engine) ResumeTimer(timerID, actor string) (models.Timer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.timer(timerID)
	if err != nil {
		return models.Timer{}, err
	}
	if t.Status != models.TimerStatusPaused {
		return *t, nil
	}

	now := e.clock.Now()
	frozen := t.PausedAt.Sub(t.StartedAt)
	t.StartedAt = now.Add(-frozen)
	t.PausedAt = nil
	t.Status = models.TimerStatusRunning
	t.UpdatedAt = now
	t.UpdatedBy = actor
	t.Provenance = models.ProvenanceLocal
	e.recordTransition("timer", string(t.Status))
	e.updateGauges()
	e.publishTimer(t, actor, now, false)
	return *t, nil
}

// CompleteTimer completes a running or overdue timer. Irreversible;
// completing an already completed timer is a no-op.
func (e *Engine) CompleteTimer(timerID, actor string) (models.Timer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.timer(timerID)
	if err != nil {
		return models.Timer{}, err
	}
	switch t.Status {
	case models.TimerStatusCompleted:
		return *t, nil
	case models.TimerStatusRunning, models.TimerStatusOverdue:
	default:
		return models.Timer{}, &InvalidTransitionError{
			Entity: "timer", ID: timerID,
			From: string(t.Status), To: string(models.TimerStatusCompleted),
		}
	}

	now := e.clock.Now()
	t.Status = models.TimerStatusCompleted
	t.UpdatedAt = now
	t.UpdatedBy = actor
	t.Provenance = models.ProvenanceLocal
	e.recordTransition("timer", string(t.Status))
	e.updateGauges()
	e.publishTimer(t, actor, now, false)
	return *t, nil
}

// DeleteTimer removes a timer in any state and announces the removal.
func (e *Engine) DeleteTimer(timerID, actor string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.timer(timerID)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	delete(e.timers, timerID)
	e.updateGauges()
	e.publishTimer(t, actor, now, true)
	return nil
}

// Tick re-evaluates every live timer against the clock, reclassifying
// running timers past their deadline as overdue. The reclassification is a
// derived re-labeling, not a guarded transition, and is idempotent: a timer
// already overdue is untouched. Returns how many timers were reclassified.
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	reclassified := 0
	for _, t := range e.timers {
		if t.Status != models.TimerStatusRunning {
			continue
		}
		if t.RemainingSeconds(now) > 0 {
			continue
		}
		t.Status = models.TimerStatusOverdue
		t.UpdatedAt = now
		t.Provenance = models.ProvenanceLocal
		reclassified++
		e.recordTransition("timer", string(t.Status))
		e.publishTimer(t, "tick", now, false)
	}
	if reclassified > 0 {
		e.logger.Debug().Int("count", reclassified).Msg("timers reclassified overdue")
	}
	e.updateGauges()
	return reclassified
}

func (e *Engine) timer(timerID string) (*models.Timer, error) {
	t, ok := e.timers[timerID]
	if !ok {
		return nil, fmt.Errorf("timer %s: %w", timerID, ErrNotFound)
	}
	return t, nil
}

func (e *Engine) publishTimer(t *models.Timer, actor string, now time.Time, deleted bool) {
	e.notifier.Publish(models.TopicTimers, models.TimerStateChangedEvent{
		EventType:  models.EventTimerStateChanged,
		EventID:    models.NewEventID(),
		Source:     e.instanceID,
		Timer:      *t,
		Deleted:    deleted,
		UpdatedBy:  actor,
		OccurredAt: now,
	})
}
