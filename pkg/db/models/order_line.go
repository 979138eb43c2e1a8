package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine is one {sku, quantity, unit_price} entry of an order. The unit
// price is frozen when the line is priced; catalog changes are not retroactive.
type OrderLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	SKU       string          `gorm:"column:sku;type:text;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	Priced    bool            `gorm:"column:priced;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
