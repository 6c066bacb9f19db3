package models

import "time"

// Organization represents a tenant organization on an organizational plan.
type Organization struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null"`            // Display name.
	PlanTier string `gorm:"type:varchar(64);not null"`     // Organizational plan tier code.
	Active   bool   `gorm:"not null;default:true"`         // Whether the organization is active.
	Slug     string `gorm:"type:varchar(255);uniqueIndex"` // URL-safe identifier.

	Departments []Department `gorm:"foreignKey:OrganizationID"` // Related departments.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Department represents a department within an organization.
type Department struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64        `gorm:"not null;index"`               // Owning organization ID.
	Organization   *Organization `gorm:"foreignKey:OrganizationID"`    // Owning organization.
	Name           string        `gorm:"type:text;not null"`           // Display name.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// User represents an account referenced by quota and usage records.
// Account lifecycle and authentication live upstream; this table carries
// only what aggregation and plan resolution need.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID *uint64 `gorm:"index"`                     // Owning organization ID, nil for personal users.
	DepartmentID   *uint64 `gorm:"index"`                     // Owning department ID, nil when unassigned.
	PlanTier       string  `gorm:"type:varchar(64);not null"` // Personal plan tier code.
	Active         bool    `gorm:"not null;default:true"`     // Whether the account is active.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
