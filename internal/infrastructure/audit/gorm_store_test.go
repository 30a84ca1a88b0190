package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/logger"
)

func setupTestStore(t *testing.T, retentionDays int) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewGormStore(db, retentionDays, nil, logger.NewNoopLogger())
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestGormStore_WriteAndRecent(t *testing.T) {
	store := setupTestStore(t, 30)
	ctx := context.Background()

	e := entry("utrecht", "alice", "decision.evaluate.kapvergunning")
	e.Details = map[string]interface{}{"statusCode": 200, "method": "POST"}
	e.ResourceType = "decision"
	e.ResourceID = "kapvergunning"
	require.NoError(t, store.Write(ctx, e))
	require.NoError(t, store.Write(ctx, entry("amsterdam", "bob", "process.delete")))

	got, err := store.Recent(ctx, service.AuditQuery{TenantID: "utrecht"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)
	assert.Equal(t, "decision", got[0].ResourceType)
	assert.Equal(t, "POST", got[0].Details["method"])
	assert.Equal(t, models.AuditSuccess, got[0].Result)
}

func TestGormStore_Purge(t *testing.T) {
	store := setupTestStore(t, 7)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := entry("utrecht", "u", "old")
	expired.Timestamp = now.Add(-8 * 24 * time.Hour)
	fresh := entry("utrecht", "u", "new")
	require.NoError(t, store.Write(ctx, expired))
	require.NoError(t, store.Write(ctx, fresh))

	n, err := store.Purge(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Recent(ctx, service.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Action)
}

func TestGormStore_NoRetention(t *testing.T) {
	store := setupTestStore(t, 0)
	n, err := store.Purge(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
