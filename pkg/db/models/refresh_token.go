package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken persists the revocable half of a token pair. Access tokens are
// stateless and never stored.
type RefreshToken struct {
	JTI       string    `gorm:"column:jti;type:text;primaryKey"`
	Subject   uuid.UUID `gorm:"column:subject;type:uuid;not null;index"`
	IssuedAt  time.Time `gorm:"column:issued_at;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	Revoked   bool      `gorm:"column:revoked;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
