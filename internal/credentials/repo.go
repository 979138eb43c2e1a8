package credentials

import (
	"context"

	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository is the persistence surface used by the credentials service.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a credentials repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("active", active)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
