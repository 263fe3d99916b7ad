package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crystalpowers/internal/config"
	"github.com/cory-johannsen/crystalpowers/internal/game/selection"
	"github.com/cory-johannsen/crystalpowers/internal/storage"
)

func TestOpen_FileAndSQLite(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{config.DriverFile, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := config.Config{Storage: config.StorageConfig{
				Driver: driver,
				Path:   filepath.Join(t.TempDir(), "nested", "selections.db"),
			}}
			b, err := storage.Open(ctx, cfg, zap.NewNop())
			require.NoError(t, err)
			defer b.Close()
			assert.Equal(t, cfg.Storage.Path, b.Location)

			want := []selection.Entry{{ActorID: "a", Power: "merling"}}
			require.NoError(t, b.Repo.ReplaceAll(ctx, want))
			got, err := b.Repo.LoadAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), config.Config{Storage: config.StorageConfig{Driver: "etcd"}}, zap.NewNop())
	assert.ErrorContains(t, err, "etcd")
}

func TestBackendClose_NilSafe(t *testing.T) {
	var b *storage.Backend
	assert.NotPanics(t, b.Close)
}

func TestOpenCipher(t *testing.T) {
	off, err := storage.OpenCipher(config.EncryptionConfig{})
	require.NoError(t, err)
	assert.False(t, off.Initialized())

	_, err = storage.OpenCipher(config.EncryptionConfig{Enabled: true})
	assert.ErrorIs(t, err, storage.ErrMissingPassword)

	on, err := storage.OpenCipher(config.EncryptionConfig{Enabled: true, MasterPassword: "pw"})
	require.NoError(t, err)
	assert.True(t, on.Initialized())
}
