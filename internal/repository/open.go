package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/appminic/kamera/internal/config"
)

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case "sqlite":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("error creating database dir: %w", err)
			}
		}
		return NewSQLiteDB(cfg.Path)
	case "mongo":
		return NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoTimeout)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
