package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/limitwatch/limitwatch/internal/adapters/store"
	"github.com/limitwatch/limitwatch/internal/config"
	"github.com/limitwatch/limitwatch/internal/core"
	"go.uber.org/zap"
)

// AlertStore combines the alert sink and reading source ports, which every
// alert backend implements together
type AlertStore interface {
	core.AlertSink
	core.ReadingSource
}

// StoreFactory creates pattern and alert stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreatePatternStore creates a pattern store based on the configuration
func (f *StoreFactory) CreatePatternStore() (core.PatternStore, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		return store.NewMemoryPatternStore(f.logger), nil
	case "sqlite":
		if err := ensureDir(storeCfg.SQLitePath); err != nil {
			return nil, err
		}
		return store.NewSQLitePatternStore(storeCfg.SQLitePath, f.logger)
	case "mysql":
		return store.NewMySQLPatternStore(storeCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

// CreateAlertStore creates an alert store based on the configuration
func (f *StoreFactory) CreateAlertStore() (AlertStore, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		return store.NewMemoryAlertStore(), nil
	case "sqlite":
		if err := ensureDir(storeCfg.SQLitePath); err != nil {
			return nil, err
		}
		return store.NewSQLiteAlertStore(storeCfg.SQLitePath, f.logger)
	case "mysql":
		return store.NewMySQLAlertStore(storeCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

func ensureDir(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create SQLite directory: %w", err)
	}
	return nil
}
