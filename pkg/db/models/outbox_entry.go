package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/pkg/enums"
)

// OutboxEntry records a durable intent against the catalog store, written in
// the same transaction as the order mutation that requires it.
type OutboxEntry struct {
	ID            uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	Action        enums.OutboxAction `gorm:"column:action;type:text;not null"`
	Payload       json.RawMessage    `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.OutboxStatus `gorm:"column:status;type:text;not null;default:pending;index"`
	Attempts      int                `gorm:"column:attempts;not null;default:0"`
	NextAttemptAt time.Time          `gorm:"column:next_attempt_at;not null"`
	ClaimedAt     *time.Time         `gorm:"column:claimed_at"`
	LastError     *string            `gorm:"column:last_error"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}
