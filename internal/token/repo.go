package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists refresh tokens. Access tokens are stateless and have no
// storage surface.
type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByJTI(ctx context.Context, jti string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, jti string) (int64, error)
	RevokeAllForSubject(ctx context.Context, subject uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a refresh token repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *repository) FindByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("jti = ?", jti).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Revoke marks the token revoked. Returns how many rows flipped so callers can
// distinguish a fresh revocation from a repeat.
func (r *repository) Revoke(ctx context.Context, jti string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("jti = ? AND revoked = ?", jti, false).
		Update("revoked", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) RevokeAllForSubject(ctx context.Context, subject uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("subject = ? AND revoked = ?", subject, false).
		Update("revoked", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
