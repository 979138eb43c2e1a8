package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository is the ledger persistence surface. Mutations that must be atomic
// with an outbox write run against a transaction-bound copy via WithTx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOutboxEntry(ctx context.Context, entry *models.OutboxEntry) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, customerID *uuid.UUID, params pagination.Params) ([]models.Order, int64, error)
	UpdateLinePrice(ctx context.Context, lineID uuid.UUID, price decimal.Decimal) error
	UpdateTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateOutboxEntry(ctx context.Context, entry *models.OutboxEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// UpdateStatus performs the guarded compare-and-set. Zero rows affected means
// another writer moved the order first.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, customerID *uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.
		Preload("Lines").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *repository) UpdateLinePrice(ctx context.Context, lineID uuid.UUID, price decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("id = ?", lineID).
		Updates(map[string]any{"unit_price": price, "priced": true}).Error
}

func (r *repository) UpdateTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("total", total).Error
}
