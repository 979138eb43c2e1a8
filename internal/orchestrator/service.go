package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vendaslabs/orders-backend/internal/catalog"
	"github.com/vendaslabs/orders-backend/internal/orders"
	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/logger"
	"go.uber.org/multierr"
)

// RequestedLine is one {sku, quantity} pair from an order placement request.
type RequestedLine struct {
	SKU      string
	Quantity int
}

// IdempotencyGuard remembers which catalog effects already happened so a
// replayed outbox entry cannot apply twice.
type IdempotencyGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Service coordinates the ledger and the catalog without a shared
// transaction. The interactive half (place, confirm, cancel) only touches the
// ledger plus read-only catalog calls; the catalog-mutating half runs through
// ApplyEntry, driven by the relay.
type Service interface {
	PlaceOrder(ctx context.Context, customerID uuid.UUID, lines []RequestedLine) (*models.Order, error)
	ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FulfillOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RefundOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ApplyEntry(ctx context.Context, entry *models.OutboxEntry) error
}

type service struct {
	ledger  orders.Service
	catalog catalog.Adapter
	guard   IdempotencyGuard
	cfg     config.CatalogConfig
	retries int
	logg    *logger.Logger
}

// ServiceParams bundles the dependencies required to build the orchestrator.
type ServiceParams struct {
	Ledger         orders.Service
	Catalog        catalog.Adapter
	Guard          IdempotencyGuard
	CatalogConfig  config.CatalogConfig
	ReserveRetries int
	Logger         *logger.Logger
}

// NewService constructs the orchestrator with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog adapter is required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	retries := params.ReserveRetries
	if retries <= 0 {
		retries = 3
	}
	return &service{
		ledger:  params.Ledger,
		catalog: params.Catalog,
		guard:   params.Guard,
		cfg:     params.CatalogConfig,
		retries: retries,
		logg:    params.Logger,
	}, nil
}

// PlaceOrder freezes unit prices from the catalog and opens the order at
// pending. A catalog outage does not block placement: affected lines stay
// unpriced and are priced when the reservation is applied.
func (s *service) PlaceOrder(ctx context.Context, customerID uuid.UUID, lines []RequestedLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must have at least one line")
	}

	inputs := make([]orders.LineInput, 0, len(lines))
	for _, line := range lines {
		input := orders.LineInput{
			SKU:      line.SKU,
			Quantity: line.Quantity,
		}
		product, err := s.catalog.Get(ctx, line.SKU)
		switch {
		case err == nil:
			input.UnitPrice = product.Price
			input.Priced = true
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("product %s not found", line.SKU))
		case pkgerrors.IsCode(err, pkgerrors.CodeUnavailable):
			s.logg.Warn(ctx, fmt.Sprintf("catalog unavailable pricing %s, deferring to relay", line.SKU))
			input.Priced = false
		default:
			return nil, err
		}
		inputs = append(inputs, input)
	}

	return s.ledger.Create(ctx, orders.CreateOrderInput{
		CustomerID: customerID,
		Lines:      inputs,
	})
}

// ConfirmOrder records payment success: reserved -> confirmed plus a confirm
// intent that consumes the catalog reservation.
func (s *service) ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	action := enums.OutboxActionConfirm
	return s.ledger.Advance(ctx, orderID, enums.OrderStatusReserved, enums.OrderStatusConfirmed, &action)
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.ledger.Cancel(ctx, orderID)
}

func (s *service) FulfillOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.ledger.Advance(ctx, orderID, enums.OrderStatusConfirmed, enums.OrderStatusFulfilled, nil)
}

// RefundOrder moves a confirmed or fulfilled order to refunded and returns
// the consumed stock via a release intent.
func (s *service) RefundOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	action := enums.OutboxActionRelease
	switch order.Status {
	case enums.OrderStatusConfirmed:
		return s.ledger.Advance(ctx, orderID, enums.OrderStatusConfirmed, enums.OrderStatusRefunded, &action)
	case enums.OrderStatusFulfilled:
		return s.ledger.Advance(ctx, orderID, enums.OrderStatusFulfilled, enums.OrderStatusRefunded, &action)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot refund order in status %s", order.Status))
	}
}

// ApplyEntry drives one outbox intent against the catalog. Returning nil
// marks the entry delivered; returning an error sends it back for retry. The
// intent is considered resolved, not failed, when the business outcome is a
// cancellation.
func (s *service) ApplyEntry(ctx context.Context, entry *models.OutboxEntry) error {
	if entry == nil {
		return fmt.Errorf("outbox entry is required")
	}
	payload, err := orders.DecodePayload(entry.Payload)
	if err != nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, payload.OrderID.String())

	switch entry.Action {
	case enums.OutboxActionReserve:
		return s.applyReserve(ctx, entry, payload)
	case enums.OutboxActionRelease:
		return s.applyRelease(ctx, entry, payload)
	case enums.OutboxActionConfirm:
		return s.applyConfirm(ctx, entry, payload)
	default:
		return fmt.Errorf("unknown outbox action %q", entry.Action)
	}
}

func (s *service) applyReserve(ctx context.Context, entry *models.OutboxEntry, payload orders.OutboxPayload) error {
	reserved := make([]orders.PayloadLine, 0, len(payload.Lines))
	prices := make(map[string]decimal.Decimal, len(payload.Lines))

	for _, line := range payload.Lines {
		product, err := s.reserveLine(ctx, entry, line)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeInsufficient) ||
				pkgerrors.IsCode(err, pkgerrors.CodeConflict) ||
				pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				s.logg.Warn(ctx, fmt.Sprintf("reservation for %s failed (%s), cancelling order", line.SKU, pkgerrors.CodeOf(err)))
				return s.cancelAfterPartialReserve(ctx, entry, payload.OrderID, reserved)
			}
			// transient; roll nothing back, the whole entry retries
			return err
		}
		reserved = append(reserved, line)
		if product != nil {
			prices[line.SKU] = product.Price
		}
	}

	if len(prices) > 0 {
		if _, err := s.ledger.PriceLines(ctx, payload.OrderID, prices); err != nil {
			return err
		}
	}

	_, err := s.ledger.Advance(ctx, payload.OrderID, enums.OrderStatusPending, enums.OrderStatusReserved, nil)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) || pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
			return s.resolveAdvanceRace(ctx, entry, payload, reserved)
		}
		return err
	}
	return nil
}

// resolveAdvanceRace handles the order having moved while the reservation was
// in flight. A previous crashed attempt may already have advanced it, in
// which case the intent is done; a user cancellation means our holds must be
// undone.
func (s *service) resolveAdvanceRace(ctx context.Context, entry *models.OutboxEntry, payload orders.OutboxPayload, reserved []orders.PayloadLine) error {
	order, err := s.ledger.Get(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	switch order.Status {
	case enums.OrderStatusReserved, enums.OrderStatusConfirmed, enums.OrderStatusFulfilled:
		return nil
	case enums.OrderStatusCancelled, enums.OrderStatusRefunded:
		s.logg.Warn(ctx, "order cancelled before reservation completed, compensating")
		return s.releaseLines(ctx, entry, reserved)
	default:
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("order %s raced during reservation", payload.OrderID))
	}
}

// reserveLine applies one sku reservation with bounded conflict retries and
// an idempotency key so a replay after a crash cannot decrement twice.
func (s *service) reserveLine(ctx context.Context, entry *models.OutboxEntry, line orders.PayloadLine) (*catalog.Product, error) {
	key := s.guard.IdempotencyKey("outbox", fmt.Sprintf("%s:%s:%s", entry.ID, entry.Action, line.SKU))
	fresh, err := s.guard.SetNX(ctx, key, 1, s.cfg.IdempotencyTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "idempotency check")
	}
	if !fresh {
		// already applied on a previous attempt
		product, err := s.catalog.Get(ctx, line.SKU)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		return product, nil
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		product, err := s.catalog.Get(ctx, line.SKU)
		if err != nil {
			return nil, s.releaseClaim(ctx, key, err)
		}
		reservedDoc, err := s.catalog.Reserve(ctx, line.SKU, int64(line.Quantity), product.Version)
		if err == nil {
			return reservedDoc, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return nil, s.releaseClaim(ctx, key, err)
		}
		lastErr = err
	}
	return nil, s.releaseClaim(ctx, key, lastErr)
}

// releaseClaim frees the idempotency key when the effect did not land, so a
// later attempt is not wrongly skipped. The key stays only after a successful
// catalog write.
func (s *service) releaseClaim(ctx context.Context, key string, cause error) error {
	if err := s.guard.Del(ctx, key); err != nil {
		return multierr.Append(cause, err)
	}
	return cause
}

func (s *service) cancelAfterPartialReserve(ctx context.Context, entry *models.OutboxEntry, orderID uuid.UUID, reserved []orders.PayloadLine) error {
	if err := s.releaseLines(ctx, entry, reserved); err != nil {
		return err
	}
	_, err := s.ledger.Advance(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusCancelled, nil)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		return err
	}
	return nil
}

// releaseLines undoes reservations made under this entry. Each release gets
// its own idempotency key, distinct from the reserve keys.
func (s *service) releaseLines(ctx context.Context, entry *models.OutboxEntry, lines []orders.PayloadLine) error {
	var combined error
	for _, line := range lines {
		key := s.guard.IdempotencyKey("outbox", fmt.Sprintf("%s:undo:%s", entry.ID, line.SKU))
		fresh, err := s.guard.SetNX(ctx, key, 1, s.cfg.IdempotencyTTL)
		if err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		if !fresh {
			continue
		}
		if _, err := s.catalog.Release(ctx, line.SKU, int64(line.Quantity)); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			combined = multierr.Append(combined, s.releaseClaim(ctx, key, err))
		}
	}
	return combined
}

func (s *service) applyRelease(ctx context.Context, entry *models.OutboxEntry, payload orders.OutboxPayload) error {
	var combined error
	for _, line := range payload.Lines {
		key := s.guard.IdempotencyKey("outbox", fmt.Sprintf("%s:%s:%s", entry.ID, entry.Action, line.SKU))
		fresh, err := s.guard.SetNX(ctx, key, 1, s.cfg.IdempotencyTTL)
		if err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		if !fresh {
			continue
		}
		if _, err := s.catalog.Release(ctx, line.SKU, int64(line.Quantity)); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				s.logg.Warn(ctx, fmt.Sprintf("release for missing product %s skipped", line.SKU))
				continue
			}
			combined = multierr.Append(combined, s.releaseClaim(ctx, key, err))
		}
	}
	return combined
}

func (s *service) applyConfirm(ctx context.Context, entry *models.OutboxEntry, payload orders.OutboxPayload) error {
	var combined error
	for _, line := range payload.Lines {
		key := s.guard.IdempotencyKey("outbox", fmt.Sprintf("%s:%s:%s", entry.ID, entry.Action, line.SKU))
		fresh, err := s.guard.SetNX(ctx, key, 1, s.cfg.IdempotencyTTL)
		if err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		if !fresh {
			continue
		}
		if _, err := s.catalog.Confirm(ctx, line.SKU, int64(line.Quantity)); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			combined = multierr.Append(combined, s.releaseClaim(ctx, key, err))
		}
	}
	return combined
}
