// Package engine implements the kitchen order and timer lifecycle engine:
// the order/item/step state machines, the timer state machine, the periodic
// tick that re-derives urgency and overdue classification, and the
// reconciliation of snapshots published by peer module instances.
//
// Each module instance owns its own engine and its own copy of every live
// order and timer. The only coupling between instances is the Notifier:
// every local transition publishes a full-state snapshot, and every inbound
// snapshot is applied last-write-wins by entity id.
package engine

import (
	"sort"
	"sync"
	"time"

	"expeditor/internal/audit"
	"expeditor/internal/bus"
	"expeditor/internal/models"
	"expeditor/internal/monitoring"
	"expeditor/internal/timing"

	"github.com/rs/zerolog"
)

// Config carries the engine's collaborators. Notifier and Clock are
// required; Audit may be nil, in which case force-ready overrides and
// archives are logged but not persisted.
type Config struct {
	// InstanceID identifies this module instance in outbound events so
	// the engine can skip its own publications on the shared bus.
	InstanceID string
	Clock      timing.Clock
	Notifier   bus.Notifier
	Monitor    *monitoring.Monitor
	Audit      *audit.Store
	Logger     zerolog.Logger
	// TickInterval is the period of the overdue re-evaluation loop.
	// Defaults to one second.
	TickInterval time.Duration
}

// Engine holds the live orders, timers and menu cache for one module
// instance. All state is guarded by a single mutex; every transition is
// applied synchronously in call order, and its snapshot event is published
// before the mutex is released so event order matches transition order.
type Engine struct {
	instanceID   string
	clock        timing.Clock
	notifier     bus.Notifier
	monitor      *monitoring.Monitor
	audit        *audit.Store
	logger       zerolog.Logger
	tickInterval time.Duration

	mu     sync.Mutex
	orders map[string]*models.Order
	timers map[string]*models.Timer
	menu   map[string]models.MenuItem

	unsubs []func()
}

// New creates an engine and subscribes it to the lifecycle topics.
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = timing.System()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	e := &Engine{
		instanceID:   cfg.InstanceID,
		clock:        cfg.Clock,
		notifier:     cfg.Notifier,
		monitor:      cfg.Monitor,
		audit:        cfg.Audit,
		logger:       cfg.Logger.With().Str("component", "engine").Str("instance", cfg.InstanceID).Logger(),
		tickInterval: cfg.TickInterval,
		orders:       make(map[string]*models.Order),
		timers:       make(map[string]*models.Timer),
		menu:         make(map[string]models.MenuItem),
	}

	e.unsubs = append(e.unsubs,
		e.notifier.Subscribe(models.TopicOrders, e.handleOrderEvent),
		e.notifier.Subscribe(models.TopicOrderItems, e.handleItemEvent),
		e.notifier.Subscribe(models.TopicTimers, e.handleTimerEvent),
		e.notifier.Subscribe(models.TopicMenu, e.handleMenuEvent),
	)
	return e
}

// Close unsubscribes the engine from the notifier. No new events are
// accepted after Close returns; events already buffered for delivery may
// still be reconciled while the subscription drains wind down.
func (e *Engine) Close() {
	for _, unsub := range e.unsubs {
		unsub()
	}
}

// Now returns the engine clock's current instant, for view projections that
// derive elapsed/remaining values.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Order returns a snapshot of one live order.
func (e *Engine) Order(id string) (models.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return o.Clone(), true
}

// Orders returns snapshots of all live orders, oldest first.
func (e *Engine) Orders() []models.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number < out[j].Number
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Timer returns a snapshot of one live timer.
func (e *Engine) Timer(id string) (models.Timer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.timers[id]
	if !ok {
		return models.Timer{}, false
	}
	return *t, true
}

// Timers returns snapshots of all live timers, oldest first.
func (e *Engine) Timers() []models.Timer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Timer, 0, len(e.timers))
	for _, t := range e.timers {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// MenuItems returns the cached menu availability records, by name.
func (e *Engine) MenuItems() []models.MenuItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.MenuItem, 0, len(e.menu))
	for _, mi := range e.menu {
		out = append(out, mi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// updateGauges refreshes the live-entity gauges. Callers hold e.mu.
func (e *Engine) updateGauges() {
	if e.monitor == nil {
		return
	}
	overdue := 0
	for _, t := range e.timers {
		if t.Status == models.TimerStatusOverdue {
			overdue++
		}
	}
	e.monitor.SetLiveOrders(len(e.orders))
	e.monitor.SetLiveTimers(len(e.timers), overdue)
}

// recordTransition counts a transition if a monitor is attached. Callers
// hold e.mu.
func (e *Engine) recordTransition(entity, status string) {
	if e.monitor != nil {
		e.monitor.RecordTransition(entity, status)
	}
}
