package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

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
	require.NoError(t, db.Exec(outbox).Error)
	return db
}

func seedEntry(t *testing.T, db *gorm.DB, status enums.OutboxStatus, nextAttemptAt time.Time) *models.OutboxEntry {
	t.Helper()
	entry := &models.OutboxEntry{
		ID:            uuid.New(),
		OrderID:       uuid.New(),
		Action:        enums.OutboxActionReserve,
		Payload:       json.RawMessage(`{"order_id":"` + uuid.NewString() + `","lines":[]}`),
		Status:        status,
		NextAttemptAt: nextAttemptAt,
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func TestFetchDueSkipsFutureAndNonPending(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	due := seedEntry(t, db, enums.OutboxStatusPending, now.Add(-time.Minute))
	seedEntry(t, db, enums.OutboxStatusPending, now.Add(time.Hour))
	seedEntry(t, db, enums.OutboxStatusDelivered, now.Add(-time.Minute))

	entries, err := repo.FetchDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, due.ID, entries[0].ID)
}

func TestClaimIsExclusive(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := seedEntry(t, db, enums.OutboxStatusPending, now.Add(-time.Minute))

	claimed, err := repo.Claim(ctx, entry.ID, now)
	require.NoError(t, err)
	assert.True(t, claimed)

	// a second worker loses the race
	claimed, err = repo.Claim(ctx, entry.ID, now)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRequeueIncrementsAttempts(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := seedEntry(t, db, enums.OutboxStatusPending, now.Add(-time.Minute))
	_, err := repo.Claim(ctx, entry.ID, now)
	require.NoError(t, err)

	next := now.Add(2 * time.Second)
	require.NoError(t, repo.Requeue(ctx, entry.ID, next, "catalog timeout"))

	var stored models.OutboxEntry
	require.NoError(t, db.Where("id = ?", entry.ID).First(&stored).Error)
	assert.Equal(t, enums.OutboxStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "catalog timeout", *stored.LastError)
	assert.Nil(t, stored.ClaimedAt)
}

func TestMarkDeliveredOnlyFromInProgress(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := seedEntry(t, db, enums.OutboxStatusPending, now.Add(-time.Minute))

	// not claimed yet: the guarded update matches nothing
	require.NoError(t, repo.MarkDelivered(ctx, entry.ID))
	var stored models.OutboxEntry
	require.NoError(t, db.Where("id = ?", entry.ID).First(&stored).Error)
	assert.Equal(t, enums.OutboxStatusPending, stored.Status)

	_, err := repo.Claim(ctx, entry.ID, now)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDelivered(ctx, entry.ID))
	require.NoError(t, db.Where("id = ?", entry.ID).First(&stored).Error)
	assert.Equal(t, enums.OutboxStatusDelivered, stored.Status)
}

func TestReleaseExpiredLeases(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	stuck := seedEntry(t, db, enums.OutboxStatusPending, now.Add(-time.Hour))
	_, err := repo.Claim(ctx, stuck.ID, now.Add(-10*time.Minute))
	require.NoError(t, err)

	fresh := seedEntry(t, db, enums.OutboxStatusPending, now.Add(-time.Hour))
	_, err = repo.Claim(ctx, fresh.ID, now)
	require.NoError(t, err)

	requeued, err := repo.ReleaseExpiredLeases(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, requeued)

	var stored models.OutboxEntry
	require.NoError(t, db.Where("id = ?", stuck.ID).First(&stored).Error)
	assert.Equal(t, enums.OutboxStatusPending, stored.Status)

	stored = models.OutboxEntry{}
	require.NoError(t, db.Where("id = ?", fresh.ID).First(&stored).Error)
	assert.Equal(t, enums.OutboxStatusInProgress, stored.Status)
}

func TestMarkFailedAndListFailed(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := seedEntry(t, db, enums.OutboxStatusPending, now.Add(-time.Minute))
	_, err := repo.Claim(ctx, entry.ID, now)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, entry.ID, "gave up"))

	failed, total, err := repo.ListFailed(ctx, pagination.Params{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, failed, 1)
	assert.Equal(t, entry.ID, failed[0].ID)
	assert.Equal(t, enums.OutboxStatusFailed, failed[0].Status)
	require.NotNil(t, failed[0].LastError)
	assert.Equal(t, "gave up", *failed[0].LastError)
}
