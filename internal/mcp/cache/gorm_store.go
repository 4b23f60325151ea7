package cache

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/clickhouse"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// gormCacheRow is the one-row-per-namespace table backing GormStore: the entire
// ExactCache snapshot for a namespace lives in a single opaque blob column, matching
// the shape PersistentStore already promises (one blob per namespace).
type gormCacheRow struct {
	Namespace string `gorm:"primaryKey;column:namespace"`
	Blob      []byte `gorm:"column:blob"`
	UpdatedAt time.Time
}

func (gormCacheRow) TableName() string { return "mcp_exact_cache_snapshots" }

// GormStore implements models.PersistentStore over any of the SQL backends GORM
// supports, so an ExactCache's durable mirror can live in Postgres, MySQL, SQLite, or
// ClickHouse without the cache package knowing which.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a GORM connection per cfg.Driver and auto-migrates the snapshot
// table. Closing the returned GormStore closes the underlying SQL connection pool.
func NewGormStore(cfg models.DatabaseConfig) (*GormStore, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s database: %w", cfg.Driver, err)
	}
	if err := db.AutoMigrate(&gormCacheRow{}); err != nil {
		return nil, fmt.Errorf("cache: migrate snapshot table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func dialectorFor(cfg models.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case models.DatabasePostgres:
		return postgres.Open(cfg.DSN), nil
	case models.DatabaseMySQL:
		return mysql.Open(cfg.DSN), nil
	case models.DatabaseSQLite:
		return sqlite.Open(cfg.DSN), nil
	case models.DatabaseClickHouse:
		return clickhouse.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("cache: unknown database driver %q", cfg.Driver)
	}
}

// Load returns the most recently saved blob for namespace, or found=false if nothing
// has been saved under it yet.
func (s *GormStore) Load(namespace string) ([]byte, bool, error) {
	var row gormCacheRow
	err := s.db.First(&row, "namespace = ?", namespace).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Blob, true, nil
}

// Save upserts blob as the current snapshot for namespace.
func (s *GormStore) Save(namespace string, blob []byte) error {
	row := gormCacheRow{Namespace: namespace, Blob: blob, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}},
		DoUpdates: clause.AssignmentColumns([]string{"blob", "updated_at"}),
	}).Create(&row).Error
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
