package engine

import (
	"testing"
	"time"

	"expeditor/internal/models"
	"expeditor/internal/timing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerStartAndCountdown(t *testing.T) {
	clock := timing.NewManual(testStart)
	e, _ := newTestEngine(clock)

	timer, err := e.StartTimer(TimerSpec{Category: models.TimerCategoryCooking, DurationSeconds: 600}, "cook")
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatusRunning, timer.Status)

	clock.Advance(125 * time.Second)
	held, ok := e.Timer(timer.ID)
	require.True(t, ok)
	assert.Equal(t, 125, int(held.Elapsed(clock.Now())/time.Second))
	assert.Equal(t, 475, held.RemainingSeconds(clock.Now()))
	assert.Equal(t, "7:55", held.Countdown(clock.Now()))
}

func TestTimerPauseResumePreservesElapsed(t *testing.T) {
	clock := timing.NewManual(testStart)
	e, _ := newTestEngine(clock)

	timer, err := e.StartTimer(TimerSpec{Category: models.TimerCategoryResting, DurationSeconds: 300}, "cook")
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	paused, err := e.PauseTimer(timer.ID, "cook")
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatusPaused, paused.Status)
	assert.Equal(t, 90*time.Second, paused.Elapsed(clock.Now()))

	// Time passes while paused; elapsed stays frozen.
	clock.Advance(10 * time.Minute)
	held, _ := e.Timer(timer.ID)
	assert.Equal(t, 90*time.Second, held.Elapsed(clock.Now()))

	resumed, err := e.ResumeTimer(timer.ID, "cook")
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatusRunning, resumed.Status)
	assert.Equal(t, 90*time.Second, resumed.Elapsed(clock.Now()),
		"elapsed unchanged at the instant of resume")

	clock.Advance(30 * time.Second)
	held, _ = e.Timer(timer.ID)
	assert.Equal(t, 120*time.Second, held.Elapsed(clock.Now()))
}

func TestTimerPauseAndCompleteAreIdempotent(t *testing.T) {
	clock := timing.NewManual(testStart)
	e, _ := newTestEngine(clock)

	timer, err := e.StartTimer(TimerSpec{Category: models.TimerCategoryHolding, DurationSeconds: 300}, "cook")
	require.NoError(t, err)

	first, err := e.PauseTimer(timer.ID, "cook")
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	second, err := e.PauseTimer(timer.ID, "cook")
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.PausedAt.Equal(*second.PausedAt), "re-pausing must not move the pause stamp")

	_, err = e.ResumeTimer(timer.ID, "cook")
	require.NoError(t, err)
	done, err := e.CompleteTimer(timer.ID, "cook")
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	again, err := e.CompleteTimer(timer.ID, "cook")
	require.NoError(t, err)
	assert.Equal(t, done.Status, again.Status)
	assert.True(t, done.UpdatedAt.Equal(again.UpdatedAt), "re-completing is a no-op")
}

func TestTickReclassifiesOverdue(t *testing.T) {
	clock := timing.NewManual(testStart)
	e, _ := newTestEngine(clock)

	timer, err := e.StartTimer(TimerSpec{Category: models.TimerCategoryCooking, DurationSeconds: 600}, "cook")
	require.NoError(t, err)

	clock.Advance(599 * time.Second)
	assert.Equal(t, 0, e.Tick(), "timer with time remaining stays running")

	clock.Advance(11 * time.Second) // 610s elapsed in total
	assert.Equal(t, 1, e.Tick())

	held, _ := e.Timer(timer.ID)
	assert.Equal(t, models.TimerStatusOverdue, held.Status)
	assert.Equal(t, -10, held.RemainingSeconds(clock.Now()))
	assert.Equal(t, -1, held.RemainingMinutes(clock.Now()))
	assert.Equal(t, "-0:10", held.Countdown(clock.Now()))

	// Idempotent: a second tick changes nothing.
	assert.Equal(t, 0, e.Tick())
	after, _ := e.Timer(timer.ID)
	assert.Equal(t, held.Status, after.Status)
	assert.True(t, held.UpdatedAt.Equal(after.UpdatedAt))
}

func TestOverdueTimerCanStillComplete(t *testing.T) {
	clock := timing.NewManual(testStart)
	e, _ := newTestEngine(clock)

	timer, err := e.StartTimer(TimerSpec{Category: models.TimerCategoryCooking, DurationSeconds: 60}, "cook")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	e.Tick()
	held, _ := e.Timer(timer.ID)
	require.Equal(t, models.TimerStatusOverdue, held.Status)

	done, err := e.CompleteTimer(timer.ID, "cook")
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatusCompleted, done.Status)
}

func TestPausedTimerIsNeverReclassified(t *testing.T) {
	clock := timing.NewManual(testStart)
	e, _ := newTestEngine(clock)

	timer, err := e.StartTimer(TimerSpec{Category: models.TimerCategoryPrep, DurationSeconds: 60}, "cook")
	require.NoError(t, err)
	_, err = e.PauseTimer(timer.ID, "cook")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Equal(t, 0, e.Tick())
	held, _ := e.Timer(timer.ID)
	assert.Equal(t, models.TimerStatusPaused, held.Status)
}

func TestTimerAttachedToOrderDerivesDuration(t *testing.T) {
	clock := timing.NewManual(testStart)
	e, _ := newTestEngine(clock)

	order, err := e.CreateOrder(twoItemOrder("#1001"), "intake")
	require.NoError(t, err)

	timer, err := e.StartTimer(TimerSpec{OrderID: order.ID, Category: models.TimerCategoryCooking}, "cook")
	require.NoError(t, err)
	assert.Equal(t, 15*60, timer.DurationSeconds, "duration runs to the order's target completion")

	_, err = e.StartTimer(TimerSpec{OrderID: "missing", Category: models.TimerCategoryCooking}, "cook")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTimer(t *testing.T) {
	clock := timing.NewManual(testStart)
	e, notifier := newTestEngine(clock)

	timer, err := e.StartTimer(TimerSpec{Category: models.TimerCategoryCustom, Label: "proofing", DurationSeconds: 120}, "baker")
	require.NoError(t, err)
	require.NoError(t, e.DeleteTimer(timer.ID, "baker"))

	_, ok := e.Timer(timer.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, e.DeleteTimer(timer.ID, "baker"), ErrNotFound)

	events := notifier.published()
	last, ok := events[len(events)-1].(models.TimerStateChangedEvent)
	require.True(t, ok)
	assert.True(t, last.Deleted)
	assert.Equal(t, timer.ID, last.Timer.ID)
}

func TestStartTimerValidation(t *testing.T) {
	clock := timing.NewManual(testStart)
	e, _ := newTestEngine(clock)

	_, err := e.StartTimer(TimerSpec{Category: models.TimerCategoryCooking}, "cook")
	assert.Error(t, err, "standalone timer requires a positive duration")

	_, err = e.StartTimer(TimerSpec{Category: "weird", DurationSeconds: 60}, "cook")
	assert.Error(t, err)
}
