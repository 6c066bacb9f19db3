package models

import (
	"time"

	"gorm.io/datatypes"
)

// Plan mirrors one personal plan tier from the static limit tables into the
// database so dashboards can read caps without linking the service. Rows are
// reseeded whenever the table version advances; they are never edited by hand.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Tier    string `gorm:"type:varchar(64);not null;uniqueIndex"` // Plan tier code.
	Version int    `gorm:"not null;default:0"`                    // Limit table revision that produced the row.

	Gateways   int64 `gorm:"not null;default:0"` // Gateway connection cap, -1 unlimited.
	Workflows  int64 `gorm:"not null;default:0"` // Workflow cap, -1 unlimited.
	Plugins    int64 `gorm:"not null;default:0"` // Plugin cap, -1 unlimited.
	AICalls    int64 `gorm:"not null;default:0"` // Daily AI call cap, -1 unlimited.
	StorageMB  int64 `gorm:"not null;default:0"` // Storage cap in MB, -1 unlimited.
	RAMMB      int64 `gorm:"not null;default:0"` // RAM cap in MB, -1 unlimited.
	CPUPercent int64 `gorm:"not null;default:0"` // CPU cap in percent, -1 unlimited.

	Metadata datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Display metadata for dashboards.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// OrgPlan mirrors one organizational plan tier (shared pool sizes) into the
// database. Same seeding rules as Plan.
type OrgPlan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Tier    string `gorm:"type:varchar(64);not null;uniqueIndex"` // Organizational plan tier code.
	Version int    `gorm:"not null;default:0"`                    // Limit table revision that produced the row.

	Gateways   int64 `gorm:"not null;default:0"` // Shared gateway pool, -1 unlimited.
	Workflows  int64 `gorm:"not null;default:0"` // Shared workflow pool, -1 unlimited.
	Plugins    int64 `gorm:"not null;default:0"` // Shared plugin pool, -1 unlimited.
	AICalls    int64 `gorm:"not null;default:0"` // Shared daily AI call budget, -1 unlimited.
	StorageMB  int64 `gorm:"not null;default:0"` // Shared storage pool in MB, -1 unlimited.
	RAMMB      int64 `gorm:"not null;default:0"` // Shared RAM pool in MB, -1 unlimited.
	CPUPercent int64 `gorm:"not null;default:0"` // Shared CPU pool in percent, -1 unlimited.

	Metadata datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Display metadata for dashboards.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
