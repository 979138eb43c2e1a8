package enums

// OrderStatus models the order lifecycle owned by the ledger.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusReserved  OrderStatus = "reserved"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusReserved, OrderStatusConfirmed,
		OrderStatusFulfilled, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition leaves the status.
// Fulfilled orders can still move to refunded.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusReserved, OrderStatusCancelled},
	OrderStatusReserved:  {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusFulfilled, OrderStatusRefunded},
	OrderStatusFulfilled: {OrderStatusRefunded},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
