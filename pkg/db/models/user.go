package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User represents the canonical identity entity. Rows are never hard-deleted;
// deactivation flips Active instead.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	Roles        pq.StringArray `gorm:"type:text[];column:roles;not null;default:ARRAY[]::text[]"`
	Active       bool           `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
