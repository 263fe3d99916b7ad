// Package storage opens the selection backend and field cipher named by the
// configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crystalpowers/internal/config"
	"github.com/cory-johannsen/crystalpowers/internal/fieldcrypt"
	"github.com/cory-johannsen/crystalpowers/internal/game/selection"
	"github.com/cory-johannsen/crystalpowers/internal/storage/postgres"
	"github.com/cory-johannsen/crystalpowers/internal/storage/sqlite"
	"github.com/cory-johannsen/crystalpowers/internal/storage/yamlfile"
)

// ErrMissingPassword is returned when encryption is enabled without a
// master password.
var ErrMissingPassword = errors.New("encryption enabled without master_password")

// Backend is an open selection repository.
type Backend struct {
	Repo selection.Repository
	// Location describes where selections live, for log output.
	Location string
	close    func()
}

// Close releases the backend's connections. Close is safe on a nil Backend.
func (b *Backend) Close() {
	if b != nil && b.close != nil {
		b.close()
	}
}

// Open opens the backend selected by cfg.Storage.Driver. The postgres driver
// applies pending migrations first when cfg.Database.AutoMigrate is set.
//
// Postcondition: Returns an open Backend the caller must Close, or an error.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverFile:
		return &Backend{Repo: yamlfile.New(cfg.Storage.Path), Location: cfg.Storage.Path}, nil

	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
		db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite %q: %w", cfg.Storage.Path, err)
		}
		return &Backend{
			Repo:     db,
			Location: cfg.Storage.Path,
			close: func() {
				if err := db.Close(); err != nil {
					logger.Warn("closing sqlite", zap.Error(err))
				}
			},
		}, nil

	case config.DriverPostgres:
		if cfg.Database.AutoMigrate {
			version, changed, err := postgres.Migrate(cfg.Database.DSN(), cfg.Database.Migrations, 0)
			if err != nil {
				return nil, fmt.Errorf("migrating database: %w", err)
			}
			logger.Info("database migrated", zap.Uint("version", version), zap.Bool("changed", changed))
		}
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		return &Backend{
			Repo:     postgres.NewSelectionRepository(pool.DB()),
			Location: fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name),
			close:    pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// OpenCipher builds the field cipher for cfg. A disabled configuration yields
// an uninitialised codec, which stores plaintext.
//
// Postcondition: Returns a non-nil codec, or ErrMissingPassword.
func OpenCipher(cfg config.EncryptionConfig) (*fieldcrypt.Codec, error) {
	if !cfg.Enabled {
		return fieldcrypt.Disabled(), nil
	}
	if cfg.MasterPassword == "" {
		return nil, ErrMissingPassword
	}
	return fieldcrypt.New(cfg.MasterPassword)
}
