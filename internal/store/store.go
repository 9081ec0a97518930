// Package store provides the persistent backends for recovery programs:
// a relational one on SQLite through GORM and a key-value one on BadgerDB.
package store

import (
	"fmt"
	"time"

	"github.com/gmsas95/recovery-tracker/internal/config"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Open creates the backend selected by cfg.Backend, wrapped in a circuit
// breaker when one is configured.
func Open(cfg *config.StorageConfig, logger *zap.Logger) (recovery.Store, error) {
	var (
		st  recovery.Store
		err error
	)

	switch cfg.Backend {
	case "", "sqlite":
		st, err = OpenSQLite(cfg.SQLitePath)
	case "badger":
		st, err = OpenBadger(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Store opened", zap.String("backend", cfg.Backend))

	if cfg.Breaker.Enabled {
		st = NewBreaker(st, BreakerSettings{
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         time.Duration(cfg.Breaker.IntervalSeconds) * time.Second,
			Timeout:          time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		}, logger)
	}

	return st, nil
}

func generateID() string {
	return "rti_" + uuid.NewString()
}
