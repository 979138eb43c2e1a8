package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 50

	defaultSalesWindow = 30 * 24 * time.Hour
	maxSalesWindow     = 366 * 24 * time.Hour
)

// Service answers reporting queries over the order ledger.
type Service interface {
	CustomerSummary(ctx context.Context, customerID uuid.UUID) (*CustomerSummary, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
	DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ServiceParams bundles the dependencies required to build a reports service.
type ServiceParams struct {
	Repo Repository

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewService constructs a reports service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reports repository is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: params.Repo, now: now}, nil
}

func (s *service) CustomerSummary(ctx context.Context, customerID uuid.UUID) (*CustomerSummary, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	summary, err := s.repo.CustomerSummary(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "customer summary")
	}
	return summary, nil
}

func (s *service) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	products, err := s.repo.TopProducts(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "top products")
	}
	return products, nil
}

// DailySales reports sold-order volume per day over [from, to). Zero bounds
// default to the trailing thirty days.
func (s *service) DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-defaultSalesWindow)
	}
	if !from.Before(to) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report range start must precede its end")
	}
	if to.Sub(from) > maxSalesWindow {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report range must not exceed one year")
	}
	days, err := s.repo.DailySales(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "daily sales")
	}
	return days, nil
}
