// Package root holds the powerctl command tree.
package root

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crystalpowers/internal/config"
	"github.com/cory-johannsen/crystalpowers/internal/fieldcrypt"
	"github.com/cory-johannsen/crystalpowers/internal/observability"
	"github.com/cory-johannsen/crystalpowers/internal/storage"
)

// Version is reported by --version.
const Version = "0.3.0"

type options struct {
	configPath string
	envFile    string
	verbose    bool
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "powerctl",
		Short:         "Operator tool for the crystal powers server",
		Long:          "powerctl manages encryption of persisted selections, inspects stored selections and the power catalog, and prepares admin credentials.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/dev.yaml", "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "optional .env file loaded before the config")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(
		newEncryptionCmd(opts),
		newSelectionsCmd(opts),
		newCatalogCmd(opts),
		newAdminCmd(opts),
	)
	return cmd
}

// Execute runs powerctl and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, Bad.Render(IconError+" "+err.Error()))
		os.Exit(1)
	}
}

func (o *options) load() (config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return config.Config{}, err
	}
	return config.Load(o.configPath)
}

func (o *options) logger() *zap.Logger {
	l, err := observability.NewCLILogger(o.verbose)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// env is an opened configuration with its backend and cipher.
type env struct {
	cfg     config.Config
	backend *storage.Backend
	cipher  *fieldcrypt.Codec
	logger  *zap.Logger
}

func (o *options) open(ctx context.Context) (*env, func(), error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger()
	cipher, err := storage.OpenCipher(cfg.Encryption)
	if err != nil {
		return nil, nil, err
	}
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		backend.Close()
		_ = logger.Sync()
	}
	return &env{cfg: cfg, backend: backend, cipher: cipher, logger: logger}, cleanup, nil
}
