package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog document for one sku. Version is a monotonic counter
// used for optimistic concurrency; every successful write increments it.
type Product struct {
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Attributes map[string]any  `json:"attributes,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Available  int64           `json:"available"`
	Reserved   int64           `json:"reserved"`
	Version    int64           `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// UpsertRequest carries an administrative create or update of a product
// document. ExpectedVersion 0 means "create, fail if it already exists".
type UpsertRequest struct {
	SKU             string
	Name            string
	Attributes      map[string]any
	Price           decimal.Decimal
	Available       int64
	ExpectedVersion int64
}
