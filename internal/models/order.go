package models

import (
	"time"
)

// Order represents a customer order tracked from payment through completion
type Order struct {
	ID                      string      `json:"id"`
	Number                  string      `json:"number"`
	Type                    OrderType   `json:"type"`
	Priority                Priority    `json:"priority"`
	Status                  OrderStatus `json:"status"`
	Instructions            string      `json:"instructions,omitempty"`
	Items                   []OrderItem `json:"items"`
	CreatedAt               time.Time   `json:"created_at"`
	EstimatedCompletionTime time.Time   `json:"estimated_completion_time"`
	EstimatedMinutes        int         `json:"estimated_minutes"`
	UpdatedAt               time.Time   `json:"updated_at"`
	UpdatedBy               string      `json:"updated_by,omitempty"`

	// Provenance distinguishes a locally applied transition from one
	// accepted as a peer snapshot. Never serialized.
	Provenance Provenance `json:"-"`
}

// OrderItem represents one line within an order, assigned to a single station
type OrderItem struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Quantity         int        `json:"quantity"`
	Station          Station    `json:"station"`
	Status           ItemStatus `json:"status"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	Steps            []PrepStep `json:"steps,omitempty"`
}

// PrepStep represents one discrete action within preparing an item
type PrepStep struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Station          Station    `json:"station"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Completed        bool       `json:"completed"`
}

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ItemStatus represents the possible states of an order item
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusPreparing ItemStatus = "preparing"
	ItemStatusReady     ItemStatus = "ready"
)

// OrderType represents how the order will be fulfilled
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeout  OrderType = "takeout"
	OrderTypeDelivery OrderType = "delivery"
)

// Priority represents the kitchen priority of an order
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Station represents a kitchen work area
type Station string

const (
	StationGrill   Station = "grill"
	StationPrep    Station = "prep"
	StationSalad   Station = "salad"
	StationDessert Station = "dessert"
	StationDrinks  Station = "drinks"
)

// Provenance tags whether the held copy of an entity came from a local
// transition or from a reconciled peer snapshot
type Provenance string

const (
	ProvenanceLocal      Provenance = "local"
	ProvenanceReconciled Provenance = "reconciled"
)

// IsOrderStatusValid checks if an order status is valid
func IsOrderStatusValid(status string) bool {
	validStatuses := map[OrderStatus]bool{
		OrderStatusCreated:   true,
		OrderStatusPaid:      true,
		OrderStatusPreparing: true,
		OrderStatusReady:     true,
		OrderStatusCompleted: true,
		OrderStatusCancelled: true,
	}
	return validStatuses[OrderStatus(status)]
}

// IsItemStatusValid checks if an item status is valid
func IsItemStatusValid(status string) bool {
	validStatuses := map[ItemStatus]bool{
		ItemStatusPending:   true,
		ItemStatusPreparing: true,
		ItemStatusReady:     true,
	}
	return validStatuses[ItemStatus(status)]
}

// IsStationValid checks if a station name is valid
func IsStationValid(station string) bool {
	validStations := map[Station]bool{
		StationGrill:   true,
		StationPrep:    true,
		StationSalad:   true,
		StationDessert: true,
		StationDrinks:  true,
	}
	return validStations[Station(station)]
}

// IsTerminal reports whether the order has reached a terminal status
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

// Item returns a pointer to the item with the given id, or nil
func (o *Order) Item(itemID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// UnfinishedItemIDs returns the ids of items that are not yet ready,
// in insertion order
func (o *Order) UnfinishedItemIDs() []string {
	var ids []string
	for i := range o.Items {
		if o.Items[i].Status != ItemStatusReady {
			ids = append(ids, o.Items[i].ID)
		}
	}
	return ids
}

// AllItemsReady reports whether every item has reached ready
func (o *Order) AllItemsReady() bool {
	return len(o.UnfinishedItemIDs()) == 0
}

// Clone returns a deep copy of the order, safe to hand out as a snapshot
func (o *Order) Clone() Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		c.Items[i] = it
		c.Items[i].Steps = make([]PrepStep, len(it.Steps))
		for j, st := range it.Steps {
			c.Items[i].Steps[j] = st
			if st.StartedAt != nil {
				t := *st.StartedAt
				c.Items[i].Steps[j].StartedAt = &t
			}
			if st.CompletedAt != nil {
				t := *st.CompletedAt
				c.Items[i].Steps[j].CompletedAt = &t
			}
		}
	}
	return c
}

// Step returns a pointer to the step with the given id, or nil
func (it *OrderItem) Step(stepID string) *PrepStep {
	for i := range it.Steps {
		if it.Steps[i].ID == stepID {
			return &it.Steps[i]
		}
	}
	return nil
}

// UnfinishedStepIDs returns the ids of steps not yet completed
func (it *OrderItem) UnfinishedStepIDs() []string {
	var ids []string
	for i := range it.Steps {
		if !it.Steps[i].Completed {
			ids = append(ids, it.Steps[i].ID)
		}
	}
	return ids
}

// AllStepsCompleted reports whether every prep step is completed
func (it *OrderItem) AllStepsCompleted() bool {
	return len(it.UnfinishedStepIDs()) == 0
}
