// Package audit persists the two record kinds that outlive engine memory:
// force-ready overrides and archived orders. Live lifecycle state is never
// written here; the store records decisions, not state.
package audit

import (
	"strings"
	"time"

	"github.com/jinzhu/gorm"
)

// ForceReadyRecord captures a force-ready override for later inspection:
// who forced which entity ready, and which ids were not actually finished.
type ForceReadyRecord struct {
	gorm.Model
	Entity        string // "order" or "item"
	EntityID      string
	OrderID       string
	OverriddenIDs string // comma-joined item or step ids
	Actor         string
	OccurredAt    time.Time
}

// ArchivedOrder is the summary row written when an order leaves engine
// memory.
type ArchivedOrder struct {
	gorm.Model
	OrderID     string
	Number      string
	FinalStatus string
	OrderedAt   time.Time
	ArchivedAt  time.Time
	ArchivedBy  string
}

// Store writes audit records through gorm.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the audit tables and returns a store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ForceReadyRecord{}, &ArchivedOrder{}).Error; err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// RecordForceReady persists a force-ready override.
func (s *Store) RecordForceReady(entity, entityID, orderID string, overridden []string, actor string, at time.Time) error {
	rec := ForceReadyRecord{
		Entity:        entity,
		EntityID:      entityID,
		OrderID:       orderID,
		OverriddenIDs: strings.Join(overridden, ","),
		Actor:         actor,
		OccurredAt:    at,
	}
	return s.db.Create(&rec).Error
}

// RecordArchive persists the summary row for an archived order.
func (s *Store) RecordArchive(orderID, number, finalStatus string, orderedAt, archivedAt time.Time, by string) error {
	rec := ArchivedOrder{
		OrderID:     orderID,
		Number:      number,
		FinalStatus: finalStatus,
		OrderedAt:   orderedAt,
		ArchivedAt:  archivedAt,
		ArchivedBy:  by,
	}
	return s.db.Create(&rec).Error
}

// ForceReadyRecords returns all force-ready overrides, newest first.
func (s *Store) ForceReadyRecords() ([]ForceReadyRecord, error) {
	var recs []ForceReadyRecord
	if err := s.db.Order("occurred_at desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// OverriddenIDList splits the stored comma-joined ids back into a slice.
func (r *ForceReadyRecord) OverriddenIDList() []string {
	if r.OverriddenIDs == "" {
		return nil
	}
	return strings.Split(r.OverriddenIDs, ",")
}
