package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository is the outbox consumption surface. Multiple relay workers may
// poll the same table; the claim compare-and-set keeps an entry with exactly
// one of them.
type Repository interface {
	FetchDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEntry, error)
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	Requeue(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	ReleaseExpiredLeases(ctx context.Context, cutoff time.Time) (int64, error)
	ListFailed(ctx context.Context, params pagination.Params) ([]models.OutboxEntry, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an outbox repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FetchDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEntry, error) {
	var entries []models.OutboxEntry
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", enums.OutboxStatusPending, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Claim flips pending to in_progress for exactly one worker. A false return
// means another worker got there first.
func (r *repository) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("id = ? AND status = ?", id, enums.OutboxStatusPending).
		Updates(map[string]any{
			"status":     enums.OutboxStatusInProgress,
			"claimed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("id = ? AND status = ?", id, enums.OutboxStatusInProgress).
		Updates(map[string]any{
			"status":     enums.OutboxStatusDelivered,
			"claimed_at": nil,
		}).Error
}

func (r *repository) Requeue(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          enums.OutboxStatusPending,
			"attempts":        gorm.Expr("attempts + 1"),
			"next_attempt_at": nextAttemptAt,
			"claimed_at":      nil,
			"last_error":      lastError,
		}).Error
}

// MarkFailed parks the entry for operator intervention. The intent row stays
// in the table; nothing is ever silently dropped.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.OutboxStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"claimed_at": nil,
			"last_error": lastError,
		}).Error
}

// ReleaseExpiredLeases returns entries stuck in_progress past the lease
// window to pending, recovering work from crashed workers.
func (r *repository) ReleaseExpiredLeases(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("status = ? AND claimed_at < ?", enums.OutboxStatusInProgress, cutoff).
		Updates(map[string]any{
			"status":     enums.OutboxStatusPending,
			"claimed_at": nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) ListFailed(ctx context.Context, params pagination.Params) ([]models.OutboxEntry, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("status = ?", enums.OutboxStatusFailed)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.OutboxEntry
	err := query.
		Order("created_at ASC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
