package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
	"github.com/ronl/business-api/pkg/utils"
)

// GormStore persists audit entries in a relational database.
type GormStore struct {
	db        *gorm.DB
	retention time.Duration
	metrics   service.Metrics
	logger    logger.Logger
}

// NewGormStore creates the store. A non-positive retentionDays keeps entries forever.
func NewGormStore(db *gorm.DB, retentionDays int, metrics service.Metrics, log logger.Logger) *GormStore {
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	return &GormStore{
		db:        db,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		metrics:   metrics,
		logger:    log.WithComponent("audit-store"),
	}
}

// Migrate creates or updates the audit table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.AuditLogEntry{})
}

func (s *GormStore) Name() string { return "database" }

// Write inserts one entry.
func (s *GormStore) Write(ctx context.Context, entry *models.AuditLogEntry) error {
	start := time.Now()
	defer func() { s.metrics.RecordDBQuery("audit_insert", time.Since(start)) }()
	return s.db.WithContext(ctx).Create(entry).Error
}

// Recent queries stored entries, newest first.
func (s *GormStore) Recent(ctx context.Context, query service.AuditQuery) ([]*models.AuditLogEntry, error) {
	start := time.Now()
	defer func() { s.metrics.RecordDBQuery("audit_select", time.Since(start)) }()

	limit := query.Limit
	if limit <= 0 {
		limit = constants.DefaultAuditQueryLimit
	}
	q := s.db.WithContext(ctx).Model(&models.AuditLogEntry{})
	if query.TenantID != "" {
		q = q.Where("tenant_id = ?", query.TenantID)
	}
	if query.UserID != "" {
		q = q.Where("user_id = ?", query.UserID)
	}
	if !query.Since.IsZero() {
		q = q.Where("timestamp >= ?", query.Since)
	}
	var entries []*models.AuditLogEntry
	if err := q.Order("timestamp DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Purge deletes entries older than the retention period relative to now.
func (s *GormStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() { s.metrics.RecordDBQuery("audit_purge", time.Since(start)) }()

	res := s.db.WithContext(ctx).Where("timestamp < ?", now.Add(-s.retention)).Delete(&models.AuditLogEntry{})
	return res.RowsAffected, res.Error
}

// StartRetention purges expired entries every interval until ctx is done.
func (s *GormStore) StartRetention(ctx context.Context, interval time.Duration) {
	if s.retention <= 0 {
		return
	}
	utils.SafeGo(ctx, s.logger, "audit-retention", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := s.Purge(ctx, time.Now().UTC())
				if err != nil {
					s.logger.Error(ctx, "Audit retention purge failed", err)
					continue
				}
				if n > 0 {
					s.logger.Info(ctx, "Audit retention purge", logger.Int64("deleted", n))
				}
			case <-ctx.Done():
				return
			}
		}
	})
}
