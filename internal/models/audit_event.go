package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEvent records an administrative allocation action.
type AuditEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Actor     uint64         `gorm:"not null;index"`                   // Administrator who performed the action.
	Action    string         `gorm:"type:varchar(64);not null;index"`  // Action identifier, e.g. allocation.department.set.
	ScopeType string         `gorm:"type:varchar(32);not null"`        // Target scope: organization, department or user.
	ScopeID   uint64         `gorm:"not null;index"`                   // Target entity ID.
	Payload   datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Structured action payload.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
