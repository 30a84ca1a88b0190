// Package postgres opens the relational database backing the durable audit store.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ronl/business-api/internal/config"
	"github.com/ronl/business-api/pkg/logger"
)

// DBConnection owns the gorm handle and its connection pool.
type DBConnection struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewDBConnection opens the database named by cfg.URL. URLs starting with
// "sqlite:" or "file:" select the embedded SQLite driver; everything else is
// treated as a PostgreSQL DSN.
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	log = log.WithComponent("database")

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(cfg.URL, "sqlite:"):
		dialector = sqlite.Open(strings.TrimPrefix(cfg.URL, "sqlite:"))
	case strings.HasPrefix(cfg.URL, "file:"):
		dialector = sqlite.Open(cfg.URL)
	default:
		dialector = postgres.Open(cfg.URL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Error(ctx, "Failed to open database", err)
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	conn := &DBConnection{db: db, logger: log}
	if err := conn.Probe(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Info(ctx, "Database connection established", logger.String("dialect", dialector.Name()))
	return conn, nil
}

// NewDBConnectionFromGorm wraps an already opened handle.
func NewDBConnectionFromGorm(db *gorm.DB, log logger.Logger) *DBConnection {
	return &DBConnection{db: db, logger: log.WithComponent("database")}
}

// DB returns the gorm handle.
func (c *DBConnection) DB() *gorm.DB {
	return c.db
}

// Name implements service.DependencyProbe.
func (c *DBConnection) Name() string {
	return "database"
}

// Probe pings the database.
func (c *DBConnection) Probe(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases the pool.
func (c *DBConnection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
