//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ronl/business-api/internal/config"
	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/infrastructure/audit"
	"github.com/ronl/business-api/internal/infrastructure/persistence/postgres"
	"github.com/ronl/business-api/pkg/logger"
)

func TestAuditStore_Postgres(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("audit"),
		tcpostgres.WithUsername("ronl"),
		tcpostgres.WithPassword("ronl"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := postgres.NewDBConnection(ctx, &config.DatabaseConfig{URL: connStr, MaxOpenConns: 4}, logger.NewNoopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.Probe(ctx))

	store := audit.NewGormStore(conn.DB(), 30, nil, logger.NewNoopLogger())
	require.NoError(t, store.Migrate(ctx))

	e := models.NewAuditLogEntry("utrecht", "citizen-1", "process.start.parkeervergunning", models.AuditSuccess)
	e.Details = map[string]interface{}{"processInstanceId": "pi-1"}
	require.NoError(t, store.Write(ctx, e))
	require.NoError(t, store.Write(ctx, models.NewAuditLogEntry("amsterdam", "admin-2", "task.claim", models.AuditSuccess)))

	got, err := store.Recent(ctx, service.AuditQuery{TenantID: "utrecht", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)
	assert.Equal(t, "pi-1", got[0].Details["processInstanceId"])

	old := models.NewAuditLogEntry("utrecht", "citizen-1", "task.complete", models.AuditSuccess)
	old.Timestamp = time.Now().UTC().AddDate(0, 0, -31)
	require.NoError(t, store.Write(ctx, old))

	purged, err := store.Purge(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}
