package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerSummary aggregates a customer's order history from the ledger.
type CustomerSummary struct {
	CustomerID  uuid.UUID       `json:"customer_id"`
	OrderCount  int64           `json:"order_count"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	LastOrderAt *time.Time      `json:"last_order_at,omitempty"`
}

// TopProduct ranks a sku by quantity sold across confirmed and fulfilled
// orders. Cancelled and refunded orders never count as sales.
type TopProduct struct {
	SKU          string          `json:"sku"`
	QuantitySold int64           `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
	OrderCount   int64           `json:"order_count"`
}

// DailySales is one day of sold-order volume.
type DailySales struct {
	Day        string          `json:"day"`
	OrderCount int64           `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}
