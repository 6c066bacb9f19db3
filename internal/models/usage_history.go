package models

import "time"

// Usage history period types.
const (
	// PeriodHourly marks an hourly usage bucket.
	PeriodHourly = "HOURLY"
	// PeriodDaily marks a daily rollup bucket.
	PeriodDaily = "DAILY"
	// PeriodWeekly marks a weekly rollup bucket.
	PeriodWeekly = "WEEKLY"
	// PeriodMonthly marks a monthly rollup bucket.
	PeriodMonthly = "MONTHLY"
)

// UsageHistoryRecord is the durable, time-bucketed usage aggregate. Hourly
// records accumulate as events occur; coarser periods are produced by the
// rollup jobs. Storage is a point-in-time gauge, the other fields are
// additive counts.
type UsageHistoryRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OwnerType   string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_usage_history_owner_period"` // Owner scope: organization, department or user.
	OwnerID     uint64    `gorm:"not null;uniqueIndex:idx_usage_history_owner_period"`                  // Owner entity ID.
	PeriodStart time.Time `gorm:"not null;uniqueIndex:idx_usage_history_owner_period"`                  // Start of the period bucket (UTC).
	PeriodType  string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_usage_history_owner_period"` // Bucket granularity.

	APICalls         int64 `gorm:"not null;default:0"` // API/AI calls in the period.
	WorkflowRuns     int64 `gorm:"not null;default:0"` // Workflow runs in the period.
	PluginExecutions int64 `gorm:"not null;default:0"` // Plugin executions in the period.
	StorageMB        int64 `gorm:"not null;default:0"` // Peak storage in MB (gauge).
	Errors           int64 `gorm:"not null;default:0"` // Errors in the period.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
