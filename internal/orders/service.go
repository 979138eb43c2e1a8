package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vendaslabs/orders-backend/pkg/db"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Service is the order ledger: the sole owner of order state. Every status
// change runs through the guarded Advance so concurrent writers cannot clash,
// and every inventory-affecting change records its outbox intent in the same
// transaction.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Advance(ctx context.Context, orderID uuid.UUID, expected, next enums.OrderStatus, outboxAction *enums.OutboxAction) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, customerID *uuid.UUID, params pagination.Params) (pagination.PageResult[models.Order], error)
	PriceLines(ctx context.Context, orderID uuid.UUID, prices map[string]decimal.Decimal) (*models.Order, error)
}

type service struct {
	client *db.Client
	repo   Repository
	now    func() time.Time
}

// ServiceParams bundles the dependencies required to build the ledger service.
type ServiceParams struct {
	Client *db.Client
	Repo   Repository

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewService constructs the ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		client: params.Client,
		repo:   params.Repo,
		now:    now,
	}, nil
}

// Create opens the order at pending and records the reserve intent in the
// same transaction. Both rows land or neither does.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must have at least one line")
	}

	lines := make([]models.OrderLine, 0, len(input.Lines))
	total := decimal.Zero
	for _, line := range input.Lines {
		sku := strings.TrimSpace(line.SKU)
		if sku == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line sku is required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("quantity for %s must be positive", sku))
		}
		if line.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("unit price for %s must be non-negative", sku))
		}
		lines = append(lines, models.OrderLine{
			ID:        uuid.New(),
			SKU:       sku,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Priced:    line.Priced,
		})
		if line.Priced {
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
	}

	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: input.CustomerID,
		Status:     enums.OrderStatusPending,
		Total:      total,
		Lines:      lines,
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.CreateOrder(ctx, order); err != nil {
			return err
		}
		return s.enqueueOutbox(ctx, txRepo, order, enums.OutboxActionReserve)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return order, nil
}

// Advance moves the order along one state machine edge. The compare-and-set
// on the current status serializes concurrent writers; the loser gets a
// conflict and must re-read. An optional outbox action is written atomically
// with the transition.
func (s *service) Advance(ctx context.Context, orderID uuid.UUID, expected, next enums.OrderStatus, outboxAction *enums.OutboxAction) (*models.Order, error) {
	if !expected.IsValid() || !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if !expected.CanTransition(next) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot move order from %s to %s", expected, next))
	}
	if outboxAction != nil && !outboxAction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid outbox action")
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		affected, err := txRepo.UpdateStatus(ctx, orderID, expected, next)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("order %s is no longer %s", orderID, expected))
		}
		if outboxAction != nil {
			return s.enqueueOutbox(ctx, txRepo, order, *outboxAction)
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance order")
	}

	order.Status = next
	return order, nil
}

// Cancel aborts an order that has not been confirmed. Once the order reached
// reserved, a compensating release intent is enqueued with the transition.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case enums.OrderStatusPending:
		return s.Advance(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusCancelled, nil)
	case enums.OrderStatusReserved:
		action := enums.OutboxActionRelease
		return s.Advance(ctx, orderID, enums.OrderStatusReserved, enums.OrderStatusCancelled, &action)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot cancel order in status %s", order.Status))
	}
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, customerID *uuid.UUID, params pagination.Params) (pagination.PageResult[models.Order], error) {
	orders, total, err := s.repo.List(ctx, customerID, params)
	if err != nil {
		return pagination.PageResult[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return pagination.NewPageResult(orders, params, total), nil
}

// PriceLines fills in unit prices for lines created while the catalog was
// unreachable, then recomputes the stored total. Already priced lines keep
// their frozen price.
func (s *service) PriceLines(ctx context.Context, orderID uuid.UUID, prices map[string]decimal.Decimal) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		total := decimal.Zero
		for i := range order.Lines {
			line := &order.Lines[i]
			if !line.Priced {
				price, ok := prices[line.SKU]
				if !ok {
					continue
				}
				if err := txRepo.UpdateLinePrice(ctx, line.ID, price); err != nil {
					return err
				}
				line.UnitPrice = price
				line.Priced = true
			}
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		order.Total = total
		return txRepo.UpdateTotal(ctx, order.ID, total)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "price order lines")
	}
	return order, nil
}

func (s *service) enqueueOutbox(ctx context.Context, repo Repository, order *models.Order, action enums.OutboxAction) error {
	payload, err := EncodePayload(PayloadFromOrder(order))
	if err != nil {
		return err
	}
	entry := &models.OutboxEntry{
		ID:            uuid.New(),
		OrderID:       order.ID,
		Action:        action,
		Payload:       payload,
		Status:        enums.OutboxStatusPending,
		NextAttemptAt: s.now(),
	}
	return repo.CreateOutboxEntry(ctx, entry)
}
