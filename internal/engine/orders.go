package engine

import (
	"fmt"
	"time"

	"expeditor/internal/models"

	"github.com/google/uuid"
)

// orderNext is the order state machine: which statuses are reachable from
// which. Cancelled is reachable from every non-terminal status.
var orderNext = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderStatusCreated: {
		models.OrderStatusPaid:      true,
		models.OrderStatusCancelled: true,
	},
	models.OrderStatusPaid: {
		models.OrderStatusPreparing: true,
		models.OrderStatusCancelled: true,
	},
	models.OrderStatusPreparing: {
		models.OrderStatusReady:     true,
		models.OrderStatusCancelled: true,
	},
	models.OrderStatusReady: {
		models.OrderStatusCompleted: true,
		models.OrderStatusCancelled: true,
	},
}

func orderCanReach(from, to models.OrderStatus) bool {
	return orderNext[from][to]
}

// CreateOrder seeds a new order into the engine at status paid and
// publishes it so peer instances pick it up. Missing ids are generated;
// a missing target-completion instant is derived from the estimate.
func (e *Engine) CreateOrder(order models.Order, actor string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if _, exists := e.orders[order.ID]; exists {
		return models.Order{}, fmt.Errorf("order %s already exists", order.ID)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.EstimatedCompletionTime.IsZero() {
		order.EstimatedCompletionTime = order.CreatedAt.Add(time.Duration(order.EstimatedMinutes) * time.Minute)
	}
	order.Status = models.OrderStatusPaid
	order.UpdatedAt = now
	order.UpdatedBy = actor
	order.Provenance = models.ProvenanceLocal
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.NewString()
		}
		if order.Items[i].Status == "" {
			order.Items[i].Status = models.ItemStatusPending
		}
		for j := range order.Items[i].Steps {
			if order.Items[i].Steps[j].ID == "" {
				order.Items[i].Steps[j].ID = uuid.NewString()
			}
		}
	}

	stored := order.Clone()
	e.orders[order.ID] = &stored
	e.recordTransition("order", string(models.OrderStatusPaid))
	e.updateGauges()

	e.notifier.Publish(models.TopicOrders, models.OrderCreatedEvent{
		EventType:  models.EventOrderCreated,
		EventID:    models.NewEventID(),
		Source:     e.instanceID,
		Order:      stored.Clone(),
		OccurredAt: now,
	})
	e.logger.Info().Str("order", order.ID).Str("number", order.Number).Msg("order created")
	return stored.Clone(), nil
}

// StartOrder moves a paid order to preparing and every pending item with it.
func (e *Engine) StartOrder(orderID, actor string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !orderCanReach(o.Status, models.OrderStatusPreparing) {
		return models.Order{}, &InvalidTransitionError{
			Entity: "order", ID: orderID,
			From: string(o.Status), To: string(models.OrderStatusPreparing),
		}
	}

	now := e.clock.Now()
	o.Status = models.OrderStatusPreparing
	var started []int
	for i := range o.Items {
		if o.Items[i].Status == models.ItemStatusPending {
			o.Items[i].Status = models.ItemStatusPreparing
			e.recordTransition("item", string(models.ItemStatusPreparing))
			started = append(started, i)
		}
	}
	e.applyLocal(o, actor, now)
	e.recordTransition("order", string(o.Status))
	for _, i := range started {
		e.publishItem(o, o.Items[i], actor, now)
	}
	e.publishOrder(o, actor, now)
	return o.Clone(), nil
}

// MarkOrderReady moves a preparing order to ready, guarded by every item
// being ready. On guard failure the blocking item ids are returned in a
// *PreconditionFailedError.
func (e *Engine) MarkOrderReady(orderID, actor string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !orderCanReach(o.Status, models.OrderStatusReady) {
		return models.Order{}, &InvalidTransitionError{
			Entity: "order", ID: orderID,
			From: string(o.Status), To: string(models.OrderStatusReady),
		}
	}
	if blocking := o.UnfinishedItemIDs(); len(blocking) > 0 {
		return models.Order{}, &PreconditionFailedError{
			Entity: "order", ID: orderID,
			To: string(models.OrderStatusReady), BlockingIDs: blocking,
		}
	}

	now := e.clock.Now()
	o.Status = models.OrderStatusReady
	e.applyLocal(o, actor, now)
	e.recordTransition("order", string(o.Status))
	e.publishOrder(o, actor, now)
	return o.Clone(), nil
}

// ForceOrderReady is the audited escape hatch: it moves a preparing order
// to ready even while items remain unfinished, and records exactly which
// item ids were overridden.
func (e *Engine) ForceOrderReady(orderID, actor string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !orderCanReach(o.Status, models.OrderStatusReady) {
		return models.Order{}, &InvalidTransitionError{
			Entity: "order", ID: orderID,
			From: string(o.Status), To: string(models.OrderStatusReady),
		}
	}

	now := e.clock.Now()
	overridden := o.UnfinishedItemIDs()
	o.Status = models.OrderStatusReady
	e.applyLocal(o, actor, now)
	e.recordTransition("order", string(o.Status))
	e.recordForceReady("order", orderID, orderID, overridden, actor, now)
	e.publishOrder(o, actor, now)
	return o.Clone(), nil
}

// CompleteOrder moves a ready order to completed. Irreversible.
func (e *Engine) CompleteOrder(orderID, actor string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !orderCanReach(o.Status, models.OrderStatusCompleted) {
		return models.Order{}, &InvalidTransitionError{
			Entity: "order", ID: orderID,
			From: string(o.Status), To: string(models.OrderStatusCompleted),
		}
	}

	now := e.clock.Now()
	o.Status = models.OrderStatusCompleted
	e.applyLocal(o, actor, now)
	e.recordTransition("order", string(o.Status))
	e.publishOrder(o, actor, now)
	return o.Clone(), nil
}

// CancelOrder moves any non-terminal order to cancelled.
func (e *Engine) CancelOrder(orderID, actor string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if o.IsTerminal() {
		return models.Order{}, &InvalidTransitionError{
			Entity: "order", ID: orderID,
			From: string(o.Status), To: string(models.OrderStatusCancelled),
		}
	}

	now := e.clock.Now()
	o.Status = models.OrderStatusCancelled
	e.applyLocal(o, actor, now)
	e.recordTransition("order", string(o.Status))
	e.publishOrder(o, actor, now)
	return o.Clone(), nil
}

// ArchiveOrder removes a terminal order from engine memory, persisting a
// summary row when an audit store is attached. Archiving is the explicit
// acknowledgment that every view is done with the order.
func (e *Engine) ArchiveOrder(orderID, actor string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(orderID)
	if err != nil {
		return err
	}
	if !o.IsTerminal() {
		return &InvalidTransitionError{
			Entity: "order", ID: orderID,
			From: string(o.Status), To: "archived",
		}
	}

	now := e.clock.Now()
	if e.audit != nil {
		if err := e.audit.RecordArchive(o.ID, o.Number, string(o.Status), o.CreatedAt, now, actor); err != nil {
			return fmt.Errorf("archive order %s: %w", orderID, err)
		}
	} else {
		e.logger.Warn().Str("order", orderID).Msg("no audit store attached, archive not persisted")
	}
	delete(e.orders, orderID)
	e.updateGauges()
	e.logger.Info().Str("order", orderID).Str("by", actor).Msg("order archived")
	return nil
}

// StartItem moves a pending item to preparing.
func (e *Engine) StartItem(orderID, itemID, actor string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(orderID)
	if err != nil {
		return models.Order{}, err
	}
	item := o.Item(itemID)
	if item == nil {
		return models.Order{}, fmt.Errorf("order %s item %s: %w", orderID, itemID, ErrNotFound)
	}
	if item.Status != models.ItemStatusPending {
		return models.Order{}, &InvalidTransitionError{
			Entity: "item", ID: itemID,
			From: string(item.Status), To: string(models.ItemStatusPreparing),
		}
	}

	now := e.clock.Now()
	item.Status = models.ItemStatusPreparing
	e.applyLocal(o, actor, now)
	e.recordTransition("item", string(item.Status))
	e.publishItem(o, *item, actor, now)
	return o.Clone(), nil
}

// MarkItemReady moves a preparing item to ready, guarded by every prep step
// being completed. When the last item goes ready the order is promoted to
// ready automatically.
func (e *Engine) MarkItemReady(orderID, itemID, actor string) (models.Order, error) {
	return e.itemReady(orderID, itemID, actor, false)
}

// ForceItemReady is the item-level escape hatch: it marks the item ready
// despite unfinished steps and records the overridden step ids.
func (e *Engine) ForceItemReady(orderID, itemID, actor string) (models.Order, error) {
	return e.itemReady(orderID, itemID, actor, true)
}

func (e *Engine) itemReady(orderID, itemID, actor string, force bool) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(orderID)
	if err != nil {
		return models.Order{}, err
	}
	item := o.Item(itemID)
	if item == nil {
		return models.Order{}, fmt.Errorf("order %s item %s: %w", orderID, itemID, ErrNotFound)
	}
	if item.Status != models.ItemStatusPreparing {
		return models.Order{}, &InvalidTransitionError{
			Entity: "item", ID: itemID,
			From: string(item.Status), To: string(models.ItemStatusReady),
		}
	}
	blocking := item.UnfinishedStepIDs()
	if len(blocking) > 0 && !force {
		return models.Order{}, &PreconditionFailedError{
			Entity: "item", ID: itemID,
			To: string(models.ItemStatusReady), BlockingIDs: blocking,
		}
	}

	now := e.clock.Now()
	item.Status = models.ItemStatusReady
	e.applyLocal(o, actor, now)
	e.recordTransition("item", string(item.Status))
	if force && len(blocking) > 0 {
		e.recordForceReady("item", itemID, orderID, blocking, actor, now)
	}
	e.publishItem(o, *item, actor, now)

	// Last item ready promotes the order.
	if o.Status == models.OrderStatusPreparing && o.AllItemsReady() {
		o.Status = models.OrderStatusReady
		e.applyLocal(o, actor, now)
		e.recordTransition("order", string(o.Status))
		e.publishOrder(o, actor, now)
	}
	return o.Clone(), nil
}

// StartStep stamps a prep step's start instant. Starting an already started
// step is a no-op.
func (e *Engine) StartStep(orderID, itemID, stepID, actor string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, item, step, err := e.step(orderID, itemID, stepID)
	if err != nil {
		return models.Order{}, err
	}
	if step.Completed {
		return models.Order{}, &InvalidTransitionError{
			Entity: "step", ID: stepID, From: "completed", To: "started",
		}
	}
	if step.StartedAt != nil {
		return o.Clone(), nil
	}

	now := e.clock.Now()
	step.StartedAt = &now
	e.applyLocal(o, actor, now)
	e.publishItem(o, *item, actor, now)
	return o.Clone(), nil
}

// CompleteStep marks a prep step completed, stamping its completion
// instant. Completing a completed step is a no-op.
func (e *Engine) CompleteStep(orderID, itemID, stepID, actor string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, item, step, err := e.step(orderID, itemID, stepID)
	if err != nil {
		return models.Order{}, err
	}
	if step.Completed {
		return o.Clone(), nil
	}

	now := e.clock.Now()
	step.Completed = true
	step.CompletedAt = &now
	if step.StartedAt != nil && now.Before(*step.StartedAt) {
		// Completion can never precede the start stamp.
		step.CompletedAt = step.StartedAt
	}
	e.applyLocal(o, actor, now)
	e.recordTransition("step", "completed")
	e.publishItem(o, *item, actor, now)
	return o.Clone(), nil
}

// order looks up a live order. Callers hold e.mu.
func (e *Engine) order(orderID string) (*models.Order, error) {
	o, ok := e.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return o, nil
}

func (e *Engine) step(orderID, itemID, stepID string) (*models.Order, *models.OrderItem, *models.PrepStep, error) {
	o, err := e.order(orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	item := o.Item(itemID)
	if item == nil {
		return nil, nil, nil, fmt.Errorf("order %s item %s: %w", orderID, itemID, ErrNotFound)
	}
	step := item.Step(stepID)
	if step == nil {
		return nil, nil, nil, fmt.Errorf("item %s step %s: %w", itemID, stepID, ErrNotFound)
	}
	return o, item, step, nil
}

// applyLocal stamps a locally applied mutation. Callers hold e.mu.
func (e *Engine) applyLocal(o *models.Order, actor string, now time.Time) {
	o.UpdatedAt = now
	o.UpdatedBy = actor
	o.Provenance = models.ProvenanceLocal
}

// publishOrder emits the full order snapshot. Callers hold e.mu, which
// keeps publish order aligned with transition order.
func (e *Engine) publishOrder(o *models.Order, actor string, now time.Time) {
	e.notifier.Publish(models.TopicOrders, models.OrderStatusChangedEvent{
		EventType:  models.EventOrderStatusChanged,
		EventID:    models.NewEventID(),
		Source:     e.instanceID,
		Order:      o.Clone(),
		UpdatedBy:  actor,
		OccurredAt: now,
	})
}

// publishItem emits the changed item plus the parent order snapshot.
func (e *Engine) publishItem(o *models.Order, item models.OrderItem, actor string, now time.Time) {
	e.notifier.Publish(models.TopicOrderItems, models.OrderItemStatusChangedEvent{
		EventType:  models.EventOrderItemStatusChanged,
		EventID:    models.NewEventID(),
		Source:     e.instanceID,
		OrderID:    o.ID,
		Item:       item,
		Order:      o.Clone(),
		UpdatedBy:  actor,
		OccurredAt: now,
	})
}

func (e *Engine) recordForceReady(entity, entityID, orderID string, overridden []string, actor string, now time.Time) {
	if e.monitor != nil {
		e.monitor.RecordForceReady(entity)
	}
	if e.audit == nil {
		e.logger.Warn().Str(entity, entityID).Strs("overridden", overridden).
			Msg("no audit store attached, force-ready override not persisted")
		return
	}
	if err := e.audit.RecordForceReady(entity, entityID, orderID, overridden, actor, now); err != nil {
		e.logger.Error().Err(err).Str(entity, entityID).Msg("failed to persist force-ready override")
	}
}
