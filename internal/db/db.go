package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/formype/lax-qlpm/config"
	"github.com/formype/lax-qlpm/internal/model"
)

// ErrNotConfigured means no remote database DSN is present; the caller
// is expected to fall back to the local store without complaint.
var ErrNotConfigured = errors.New("remote database is not configured")

// Init opens the remote database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, ErrNotConfigured
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs schema migrations for every store-owned model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.MachineRecord{},
		&model.MachineHistoryEntry{},
		&model.User{},
		&model.GlobalSettings{},
		&model.AppVersionConfig{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}
