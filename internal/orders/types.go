package orders

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
)

// LineInput is one requested {sku, quantity} pair. UnitPrice is set by the
// caller when the catalog answered during order placement; unpriced lines are
// priced later by the relay on first successful reservation.
type LineInput struct {
	SKU       string
	Quantity  int
	UnitPrice decimal.Decimal
	Priced    bool
}

// CreateOrderInput carries everything needed to open an order at pending.
type CreateOrderInput struct {
	CustomerID uuid.UUID
	Lines      []LineInput
}

// PayloadLine is the per-sku slice of an outbox payload.
type PayloadLine struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// OutboxPayload is the catalog-side intent recorded with an order mutation.
// It snapshots the lines at write time so delivery does not depend on a later
// re-read of the order.
type OutboxPayload struct {
	OrderID uuid.UUID     `json:"order_id"`
	Lines   []PayloadLine `json:"lines"`
}

// EncodePayload serializes the intent for the outbox row.
func EncodePayload(payload OutboxPayload) (json.RawMessage, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode outbox payload: %w", err)
	}
	return encoded, nil
}

// DecodePayload parses an outbox row back into the recorded intent.
func DecodePayload(raw json.RawMessage) (OutboxPayload, error) {
	var payload OutboxPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return OutboxPayload{}, fmt.Errorf("decode outbox payload: %w", err)
	}
	return payload, nil
}

// PayloadFromOrder snapshots an order's lines into an outbox payload.
func PayloadFromOrder(order *models.Order) OutboxPayload {
	lines := make([]PayloadLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, PayloadLine{SKU: line.SKU, Quantity: line.Quantity})
	}
	return OutboxPayload{OrderID: order.ID, Lines: lines}
}
