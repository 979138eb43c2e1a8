package enums

// OutboxAction identifies the catalog-side effect an outbox entry intends.
type OutboxAction string

const (
	OutboxActionReserve OutboxAction = "reserve"
	OutboxActionRelease OutboxAction = "release"
	OutboxActionConfirm OutboxAction = "confirm"
)

func (a OutboxAction) IsValid() bool {
	switch a {
	case OutboxActionReserve, OutboxActionRelease, OutboxActionConfirm:
		return true
	default:
		return false
	}
}

// OutboxStatus tracks delivery progress of an outbox entry.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusInProgress OutboxStatus = "in_progress"
	OutboxStatusDelivered  OutboxStatus = "delivered"
	OutboxStatusFailed     OutboxStatus = "failed"
)
