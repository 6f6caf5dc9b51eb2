package engine

import (
	"expeditor/internal/models"
)

// Reconciliation: every inbound event is a full-state snapshot for its
// entity, applied last-snapshot-wins keyed by entity id and timestamp.
// A snapshot older than the locally held state is dropped silently; the
// drop is counted and logged for diagnosis but is never a caller error.
// Events this instance published itself are skipped by source id.

func (e *Engine) handleOrderEvent(event interface{}) {
	switch evt := event.(type) {
	case models.OrderCreatedEvent:
		if evt.Source == e.instanceID {
			return
		}
		e.reconcileOrderCreated(evt)
	case models.OrderStatusChangedEvent:
		if evt.Source == e.instanceID {
			return
		}
		e.reconcileOrderSnapshot(evt.Order, evt)
	case models.OrderUpdatedEvent:
		if evt.Source == e.instanceID {
			return
		}
		e.reconcileOrderUpdate(evt)
	default:
		e.dropMalformed(models.TopicOrders, event)
	}
}

func (e *Engine) handleItemEvent(event interface{}) {
	evt, ok := event.(models.OrderItemStatusChangedEvent)
	if !ok {
		e.dropMalformed(models.TopicOrderItems, event)
		return
	}
	if evt.Source == e.instanceID {
		return
	}
	// The item event carries the full parent order snapshot; reconciling
	// the order covers the item.
	e.reconcileOrderSnapshot(evt.Order, models.OrderStatusChangedEvent{
		Order:      evt.Order,
		UpdatedBy:  evt.UpdatedBy,
		OccurredAt: evt.OccurredAt,
	})
}

func (e *Engine) handleTimerEvent(event interface{}) {
	evt, ok := event.(models.TimerStateChangedEvent)
	if !ok {
		e.dropMalformed(models.TopicTimers, event)
		return
	}
	if evt.Source == e.instanceID {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if evt.Timer.ID == "" {
		e.countMalformed()
		e.logger.Warn().Msg("timer event without id dropped")
		return
	}
	if !evt.Deleted && !timerSnapshotCoherent(evt.Timer) {
		e.countMalformed()
		e.logger.Warn().Str("timer", evt.Timer.ID).Str("status", string(evt.Timer.Status)).
			Msg("malformed timer snapshot dropped")
		return
	}
	local, exists := e.timers[evt.Timer.ID]
	if exists && evt.OccurredAt.Before(local.UpdatedAt) {
		e.dropStale("timer", evt.Timer.ID)
		return
	}
	if evt.Deleted {
		if exists {
			delete(e.timers, evt.Timer.ID)
			e.updateGauges()
		}
		return
	}

	t := evt.Timer
	t.UpdatedAt = evt.OccurredAt
	t.Provenance = models.ProvenanceReconciled
	e.timers[t.ID] = &t
	e.updateGauges()
	e.logger.Debug().Str("timer", t.ID).Str("status", string(t.Status)).Msg("timer snapshot reconciled")
}

// timerSnapshotCoherent rejects inbound timer states that would corrupt the
// local copy: an unknown status, or a pause stamp inconsistent with the
// status. A paused timer without PausedAt would nil-deref on resume.
func timerSnapshotCoherent(t models.Timer) bool {
	if !models.IsTimerStatusValid(string(t.Status)) {
		return false
	}
	if t.Status == models.TimerStatusPaused {
		return t.PausedAt != nil
	}
	return t.PausedAt == nil
}

func (e *Engine) handleMenuEvent(event interface{}) {
	evt, ok := event.(models.MenuItemUpdatedEvent)
	if !ok {
		e.dropMalformed(models.TopicMenu, event)
		return
	}
	if evt.ItemID == "" {
		e.countMalformed()
		e.logger.Warn().Msg("menu event without item id dropped")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mi := e.menu[evt.ItemID]
	mi.ID = evt.ItemID
	if mi.UpdatedAt.After(evt.OccurredAt) {
		e.dropStale("menu_item", evt.ItemID)
		return
	}
	if evt.Name != nil {
		mi.Name = *evt.Name
	}
	if evt.Price != nil {
		mi.Price = *evt.Price
	}
	if evt.Available != nil {
		mi.Available = *evt.Available
	}
	mi.UpdatedAt = evt.OccurredAt
	e.menu[evt.ItemID] = mi
}

// reconcileOrderCreated seeds an order announced by a peer. Whatever status
// the snapshot arrived with, the order enters this engine at paid; later
// snapshots move it forward.
func (e *Engine) reconcileOrderCreated(evt models.OrderCreatedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if evt.Order.ID == "" {
		e.countMalformed()
		e.logger.Warn().Msg("order created event without id dropped")
		return
	}
	if local, exists := e.orders[evt.Order.ID]; exists {
		if evt.OccurredAt.Before(local.UpdatedAt) {
			e.dropStale("order", evt.Order.ID)
		}
		return
	}

	o := evt.Order.Clone()
	o.Status = models.OrderStatusPaid
	for i := range o.Items {
		if o.Items[i].Status == "" {
			o.Items[i].Status = models.ItemStatusPending
		}
	}
	o.UpdatedAt = evt.OccurredAt
	o.Provenance = models.ProvenanceReconciled
	e.orders[o.ID] = &o
	e.updateGauges()
	e.logger.Info().Str("order", o.ID).Str("number", o.Number).Msg("order seeded from peer")
}

// reconcileOrderSnapshot replaces the local order wholesale with the
// snapshot when the snapshot is not older.
func (e *Engine) reconcileOrderSnapshot(order models.Order, evt models.OrderStatusChangedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if order.ID == "" || !models.IsOrderStatusValid(string(order.Status)) {
		e.countMalformed()
		e.logger.Warn().Str("order", order.ID).Str("status", string(order.Status)).
			Msg("malformed order snapshot dropped")
		return
	}
	if local, exists := e.orders[order.ID]; exists && evt.OccurredAt.Before(local.UpdatedAt) {
		e.dropStale("order", order.ID)
		return
	}

	o := order.Clone()
	o.UpdatedAt = evt.OccurredAt
	o.UpdatedBy = evt.UpdatedBy
	o.Provenance = models.ProvenanceReconciled
	e.orders[o.ID] = &o
	e.updateGauges()
	e.logger.Debug().Str("order", o.ID).Str("status", string(o.Status)).Msg("order snapshot reconciled")
}

// reconcileOrderUpdate applies the partial-update event shape peers may
// raise. It only patches an order the engine already holds.
func (e *Engine) reconcileOrderUpdate(evt models.OrderUpdatedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if evt.OrderID == "" {
		e.countMalformed()
		e.logger.Warn().Msg("order update event without id dropped")
		return
	}
	local, exists := e.orders[evt.OrderID]
	if !exists {
		e.logger.Debug().Str("order", evt.OrderID).Msg("update for unknown order dropped")
		return
	}
	if evt.OccurredAt.Before(local.UpdatedAt) {
		e.dropStale("order", evt.OrderID)
		return
	}

	if evt.Status != "" {
		if !models.IsOrderStatusValid(string(evt.Status)) {
			e.countMalformed()
			e.logger.Warn().Str("order", evt.OrderID).Str("status", string(evt.Status)).
				Msg("malformed order update dropped")
			return
		}
		local.Status = evt.Status
	}
	if evt.ItemID != "" {
		item := local.Item(evt.ItemID)
		if item == nil || !models.IsItemStatusValid(string(evt.ItemStatus)) {
			e.countMalformed()
			e.logger.Warn().Str("order", evt.OrderID).Str("item", evt.ItemID).
				Msg("malformed item update dropped")
			return
		}
		item.Status = evt.ItemStatus
	}
	local.UpdatedAt = evt.OccurredAt
	local.UpdatedBy = evt.UpdatedBy
	local.Provenance = models.ProvenanceReconciled
	e.updateGauges()
}

func (e *Engine) dropStale(entity, id string) {
	if e.monitor != nil {
		e.monitor.RecordStaleSnapshot()
	}
	e.logger.Debug().Str(entity, id).Msg("stale snapshot dropped")
}

func (e *Engine) dropMalformed(topic string, event interface{}) {
	e.countMalformed()
	e.logger.Warn().Str("topic", topic).Type("event", event).Msg("uninterpretable event dropped")
}

func (e *Engine) countMalformed() {
	if e.monitor != nil {
		e.monitor.RecordMalformedEvent()
	}
}
