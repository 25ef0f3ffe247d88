package store

import (
	"errors"

	"go.uber.org/zap"

	"github.com/formype/lax-qlpm/config"
	"github.com/formype/lax-qlpm/internal/db"
)

// Open picks the backend for the lifetime of the process. It tries the
// remote database first; any initialization failure drops the store
// into the same-device fallback permanently, with no later re-attempt.
func Open(cfg *config.Config, logger *zap.Logger) (Store, error) {
	gormDB, err := db.Init(&cfg.Database)
	if err == nil {
		logger.Info("connected to remote database", zap.String("driver", cfg.Database.Driver))
		return NewGormStore(gormDB, cfg.Labs, logger), nil
	}

	if errors.Is(err, db.ErrNotConfigured) {
		// Absent configuration is expected on standalone installs; only
		// a genuine connectivity failure deserves a loud warning.
		logger.Info("no remote database configured, using local fallback store")
	} else {
		logger.Warn("remote database unavailable, switching to OFFLINE mode (data stays on this device)",
			zap.Error(err))
	}
	return NewLocalStore(cfg.Local.DataDir, cfg.Labs, logger)
}
