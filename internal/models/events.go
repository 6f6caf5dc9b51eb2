package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// TopicOrders delivers order-level lifecycle snapshots.
	TopicOrders = "orders.status"
	// TopicOrderItems delivers item-level lifecycle snapshots.
	TopicOrderItems = "orders.items"
	// TopicTimers delivers timer lifecycle snapshots.
	TopicTimers = "timers.state"
	// TopicMenu carries informational menu-item updates from peer modules.
	TopicMenu = "menu.items"
)

const (
	// EventOrderCreated seeds a new order into every module at status paid.
	EventOrderCreated = "order.created"
	// EventOrderStatusChanged identifies an order snapshot after a transition.
	EventOrderStatusChanged = "order.status.changed"
	// EventOrderItemStatusChanged identifies an item-level snapshot.
	EventOrderItemStatusChanged = "order.item.status.changed"
	// EventOrderUpdated identifies a partial update raised by a peer module.
	EventOrderUpdated = "order.updated"
	// EventTimerStateChanged identifies a timer snapshot after a transition.
	EventTimerStateChanged = "timer.state.changed"
	// EventMenuItemUpdated identifies an informational menu change.
	EventMenuItemUpdated = "menu.item.updated"
)

// OrderCreatedEvent seeds a new order. The embedded order is the full
// snapshot; whatever status it arrives with, the engine admits it at paid.
type OrderCreatedEvent struct {
	EventType  string    `json:"event_type"`
	EventID    string    `json:"event_id"`
	Source     string    `json:"source,omitempty"`
	Order      Order     `json:"order"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderStatusChangedEvent carries the full post-transition order snapshot.
type OrderStatusChangedEvent struct {
	EventType  string    `json:"event_type"`
	EventID    string    `json:"event_id"`
	Source     string    `json:"source,omitempty"`
	Order      Order     `json:"order"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderItemStatusChangedEvent carries the changed item plus the full parent
// order snapshot, so subscribers reconcile without replaying history.
type OrderItemStatusChangedEvent struct {
	EventType  string    `json:"event_type"`
	EventID    string    `json:"event_id"`
	Source     string    `json:"source,omitempty"`
	OrderID    string    `json:"order_id"`
	Item       OrderItem `json:"item"`
	Order      Order     `json:"order"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderUpdatedEvent is the partial-update shape peer modules may raise for
// an order or one of its items.
type OrderUpdatedEvent struct {
	EventType  string      `json:"event_type"`
	EventID    string      `json:"event_id"`
	Source     string      `json:"source,omitempty"`
	OrderID    string      `json:"order_id"`
	Status     OrderStatus `json:"status,omitempty"`
	ItemID     string      `json:"item_id,omitempty"`
	ItemStatus ItemStatus  `json:"item_status,omitempty"`
	UpdatedBy  string      `json:"updated_by,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// TimerStateChangedEvent carries the full post-transition timer snapshot.
// Deleted is set when the timer was removed rather than changed.
type TimerStateChangedEvent struct {
	EventType  string    `json:"event_type"`
	EventID    string    `json:"event_id"`
	Source     string    `json:"source,omitempty"`
	Timer      Timer     `json:"timer"`
	Deleted    bool      `json:"deleted,omitempty"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MenuItem is the cached availability record surfaced to views.
type MenuItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MenuItemUpdatedEvent is informational only; it never touches order or
// timer lifecycle state.
type MenuItemUpdatedEvent struct {
	EventType  string    `json:"event_type"`
	EventID    string    `json:"event_id"`
	Source     string    `json:"source,omitempty"`
	ItemID     string    `json:"item_id"`
	Name       *string   `json:"name,omitempty"`
	Price      *float64  `json:"price,omitempty"`
	Available  *bool     `json:"available,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEventID returns a unique id for an outbound event.
func NewEventID() string {
	return uuid.NewString()
}
