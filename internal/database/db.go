package database

import (
	"fmt"
	"strings"
	"time"

	"bakery-inventory/internal/config"
	"bakery-inventory/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database. It does not migrate.
func Open(cfg *config.Config) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return nil, fmt.Errorf("database DSN must not be empty")
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseDSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if cfg.DBDriver == config.DriverSQLite {
		// SQLite allows a single writer; serialize through one connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	zap.S().Infow("database connected", "driver", cfg.DBDriver)
	return db, nil
}

// GormConfig is shared by Open and the in-memory databases used in tests.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate creates or updates every table in models.Tables.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}
	if err := db.AutoMigrate(models.Tables...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// Reset drops every table and migrates again.
func Reset(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}
	zap.S().Warn("dropping all tables")
	if err := db.Migrator().DropTable(models.Tables...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return Migrate(db)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
