package orders

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total TEXT NOT NULL DEFAULT '0',
  created_at DATETIME,
  updated_at DATETIME
);`
	orderLines := `
CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL DEFAULT '0',
  priced INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);`
	outbox := `
CREATE TABLE IF NOT EXISTS outbox_entries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  action TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INTEGER NOT NULL DEFAULT 0,
  next_attempt_at DATETIME NOT NULL,
  claimed_at DATETIME,
  last_error TEXT,
  created_at DATETIME
);`
	for _, stmt := range []string{orders, orderLines, outbox} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Status:     status,
		Total:      decimal.RequireFromString("20.00"),
		Lines: []models.OrderLine{
			{
				ID:        uuid.New(),
				SKU:       "A",
				Quantity:  2,
				UnitPrice: decimal.RequireFromString("10.00"),
				Priced:    true,
			},
		},
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPending)

	affected, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusReserved)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	// a second writer expecting the old status loses
	affected, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReserved, stored.Status)
}

func TestUpdateStatusConcurrentWritersSingleWinner(t *testing.T) {
	db := setupOrdersTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps sqlite from returning busy errors under
	// concurrent writers; the CAS itself decides the winner
	sqlDB.SetMaxOpenConns(1)

	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusPending)

	const writers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			affected, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusReserved)
			if err != nil {
				t.Errorf("update status: %v", err)
				return
			}
			wins.Add(int32(affected))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReserved, stored.Status)
}

func TestFindByIDPreloadsLines(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, enums.OrderStatusPending)

	stored, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "A", stored.Lines[0].SKU)
	assert.True(t, stored.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
}

func TestListFiltersByCustomer(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := seedOrder(t, db, enums.OrderStatusPending)
	seedOrder(t, db, enums.OrderStatusPending)

	all, total, err := repo.List(ctx, nil, pagination.Params{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	mine, total, err := repo.List(ctx, &first.CustomerID, pagination.Params{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)
}

func TestUpdateLinePriceAndTotal(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPending)
	line := order.Lines[0]

	require.NoError(t, repo.UpdateLinePrice(ctx, line.ID, decimal.RequireFromString("12.50")))
	require.NoError(t, repo.UpdateTotal(ctx, order.ID, decimal.RequireFromString("25.00")))

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, stored.Lines[0].UnitPrice.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, stored.Lines[0].Priced)
}

func TestCreateOutboxEntryRoundTrip(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPending)
	payload, err := EncodePayload(PayloadFromOrder(order))
	require.NoError(t, err)

	entry := &models.OutboxEntry{
		ID:            uuid.New(),
		OrderID:       order.ID,
		Action:        enums.OutboxActionReserve,
		Payload:       payload,
		Status:        enums.OutboxStatusPending,
		NextAttemptAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateOutboxEntry(ctx, entry))

	var stored models.OutboxEntry
	require.NoError(t, db.Where("id = ?", entry.ID).First(&stored).Error)

	decoded, err := DecodePayload(stored.Payload)
	require.NoError(t, err)
	assert.Equal(t, order.ID, decoded.OrderID)
	require.Len(t, decoded.Lines, 1)
	assert.Equal(t, "A", decoded.Lines[0].SKU)
	assert.Equal(t, 2, decoded.Lines[0].Quantity)
}
