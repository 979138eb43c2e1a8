package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
)

type stubReportsRepo struct {
	topLimit  int
	salesFrom time.Time
	salesTo   time.Time
}

func (s *stubReportsRepo) CustomerSummary(_ context.Context, customerID uuid.UUID) (*CustomerSummary, error) {
	return &CustomerSummary{CustomerID: customerID}, nil
}

func (s *stubReportsRepo) TopProducts(_ context.Context, limit int) ([]TopProduct, error) {
	s.topLimit = limit
	return nil, nil
}

func (s *stubReportsRepo) DailySales(_ context.Context, from, to time.Time) ([]DailySales, error) {
	s.salesFrom = from
	s.salesTo = to
	return nil, nil
}

func buildReports(t *testing.T, repo Repository, clock func() time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Now: clock})
	require.NoError(t, err)
	return svc
}

func TestCustomerSummaryRequiresCustomerID(t *testing.T) {
	svc := buildReports(t, &stubReportsRepo{}, nil)

	_, err := svc.CustomerSummary(context.Background(), uuid.Nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestTopProductsClampsLimit(t *testing.T) {
	repo := &stubReportsRepo{}
	svc := buildReports(t, repo, nil)
	ctx := context.Background()

	_, err := svc.TopProducts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultTopLimit, repo.topLimit)

	_, err = svc.TopProducts(ctx, 10_000)
	require.NoError(t, err)
	assert.Equal(t, maxTopLimit, repo.topLimit)
}

func TestDailySalesDefaultsToTrailingMonth(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	repo := &stubReportsRepo{}
	svc := buildReports(t, repo, func() time.Time { return now })

	_, err := svc.DailySales(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, now, repo.salesTo)
	assert.Equal(t, now.Add(-defaultSalesWindow), repo.salesFrom)
}

func TestDailySalesRejectsBadRanges(t *testing.T) {
	svc := buildReports(t, &stubReportsRepo{}, nil)
	ctx := context.Background()
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.DailySales(ctx, day, day.Add(-time.Hour))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.DailySales(ctx, day, day.Add(2*366*24*time.Hour))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
