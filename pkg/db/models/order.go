package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vendaslabs/orders-backend/pkg/enums"
)

// Order is the ledger's authoritative record of an order. Status changes go
// through guarded compare-and-set updates only.
type Order struct {
	ID         uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Status     enums.OrderStatus `gorm:"column:status;type:text;not null"`
	Total      decimal.Decimal   `gorm:"column:total;type:numeric(14,2);not null"`
	Lines      []OrderLine       `gorm:"foreignKey:OrderID"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
