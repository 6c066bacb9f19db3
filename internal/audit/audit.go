// Package audit records administrative allocation actions. The sink is an
// interface so deployments can forward events elsewhere; the default
// recorder persists them next to the allocation tables.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/omniflow/quotad/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Allocation audit actions.
const (
	ActionDeptAllocationSet      = "allocation.department.set"
	ActionDeptAllocationRemove   = "allocation.department.remove"
	ActionMemberAllocationSet    = "allocation.member.set"
	ActionMemberAllocationRemove = "allocation.member.remove"
)

// Event is one administrative action to record.
type Event struct {
	Actor     uint64
	Action    string
	ScopeType string
	ScopeID   uint64
	Payload   any
}

// Recorder receives audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// GormRecorder persists audit events via GORM.
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder constructs a GormRecorder.
func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

// Record persists one audit event.
func (r *GormRecorder) Record(ctx context.Context, event Event) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("audit: recorder not initialized")
	}

	payload := []byte("{}")
	if event.Payload != nil {
		encoded, errMarshal := json.Marshal(event.Payload)
		if errMarshal != nil {
			return fmt.Errorf("audit: marshal payload: %w", errMarshal)
		}
		payload = encoded
	}

	row := models.AuditEvent{
		Actor:     event.Actor,
		Action:    event.Action,
		ScopeType: event.ScopeType,
		ScopeID:   event.ScopeID,
		Payload:   datatypes.JSON(payload),
	}
	if errCreate := r.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return fmt.Errorf("audit: record event: %w", errCreate)
	}
	return nil
}
