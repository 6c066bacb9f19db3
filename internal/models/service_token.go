package models

import "time"

// ServiceToken is a bearer credential for service-to-service callers of the
// quota API. The raw token is never stored, only its bcrypt hash.
type ServiceToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name      string `gorm:"type:varchar(255);not null;uniqueIndex"` // Caller name, used as the JWT subject.
	TokenHash string `gorm:"type:text;not null"`                     // bcrypt hash of the raw token.
	Disabled  bool   `gorm:"not null;default:false"`                 // Explicit disable flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
