package models

import "time"

// DeptAllocation carves a slice of an organization's plan pool out for one
// department. Nil caps inherit from the organization pool.
type DeptAllocation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"`       // Owning organization ID.
	DepartmentID   uint64 `gorm:"not null;uniqueIndex"` // Target department ID (one allocation per department).

	Gateways   *int64 `gorm:"type:bigint"` // Gateway connection cap, nil inherits.
	Workflows  *int64 `gorm:"type:bigint"` // Workflow cap, nil inherits.
	Plugins    *int64 `gorm:"type:bigint"` // Plugin cap, nil inherits.
	AICalls    *int64 `gorm:"type:bigint"` // Daily AI call cap, nil inherits.
	StorageMB  *int64 `gorm:"type:bigint"` // Storage cap in MB, nil inherits.
	RAMMB      *int64 `gorm:"type:bigint"` // RAM pool slice in MB, nil inherits.
	CPUPercent *int64 `gorm:"type:bigint"` // CPU pool slice in percent, nil inherits.

	AllocMode   string `gorm:"type:varchar(32);not null;default:'HARD_CAP'"` // Enforcement mode for allocated caps.
	AllocatedBy uint64 `gorm:"not null"`                                     // Administrator who set the allocation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// MemberAllocation carves a slice of a department's allocation out for one
// member. At most one record per (department, user) pair. Plugins, RAM and
// CPU stay department-shared and have no member field.
type MemberAllocation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	DepartmentID uint64 `gorm:"not null;uniqueIndex:idx_member_allocations_dept_user"` // Owning department ID.
	UserID       uint64 `gorm:"not null;uniqueIndex:idx_member_allocations_dept_user"` // Target member user ID.

	Gateways  *int64 `gorm:"type:bigint"` // Gateway connection cap, nil inherits.
	Workflows *int64 `gorm:"type:bigint"` // Workflow cap, nil inherits.
	AICalls   *int64 `gorm:"type:bigint"` // Daily AI call cap, nil inherits.
	StorageMB *int64 `gorm:"type:bigint"` // Storage cap in MB, nil inherits.

	AllocMode   string `gorm:"type:varchar(32);not null;default:'HARD_CAP'"` // Enforcement mode for allocated caps.
	AllocatedBy uint64 `gorm:"not null"`                                     // Administrator who set the allocation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
