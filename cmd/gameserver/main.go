// Package main provides the powers server binary: it loads the catalog and
// persisted selections, runs the tick loop and serves powers.v1.PowerService.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/crystalpowers/internal/config"
	"github.com/cory-johannsen/crystalpowers/internal/fieldcrypt"
	"github.com/cory-johannsen/crystalpowers/internal/game/power"
	"github.com/cory-johannsen/crystalpowers/internal/game/random"
	"github.com/cory-johannsen/crystalpowers/internal/game/reaction"
	"github.com/cory-johannsen/crystalpowers/internal/game/selection"
	"github.com/cory-johannsen/crystalpowers/internal/game/session"
	"github.com/cory-johannsen/crystalpowers/internal/game/tick"
	"github.com/cory-johannsen/crystalpowers/internal/gameserver"
	"github.com/cory-johannsen/crystalpowers/internal/observability"
	"github.com/cory-johannsen/crystalpowers/internal/powers"
	"github.com/cory-johannsen/crystalpowers/internal/scripting"
	"github.com/cory-johannsen/crystalpowers/internal/server"
	"github.com/cory-johannsen/crystalpowers/internal/storage"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional .env file loaded before the config")
	flag.Parse()

	ctx := context.Background()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("loading env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	if err := ensureEncryptionKey(*configPath, &cfg, fieldcrypt.GenerateKey, logger); err != nil {
		logger.Fatal("generating encryption key", zap.Error(err))
	}
	cipher, err := storage.OpenCipher(cfg.Encryption)
	if err != nil {
		logger.Fatal("building field cipher", zap.Error(err))
	}

	// Catalog
	loader := power.Builtin()
	if cfg.Catalog.Dir != "" {
		loader = power.Chain(power.Builtin(), power.LoadDirectory(cfg.Catalog.Dir))
	}
	catalog, err := power.NewCatalog(loader, random.NewCryptoSource())
	if err != nil {
		logger.Fatal("loading power catalog", zap.Error(err))
	}
	logger.Info("power catalog loaded",
		zap.Int("powers", catalog.Len()),
		zap.Int("version", catalog.Version()),
	)

	// Selections
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening selection storage", zap.Error(err))
	}
	store := selection.NewStore(backend.Repo, cipher, logger)
	loadStart := time.Now()
	n, err := store.Load(ctx)
	if err != nil {
		logger.Fatal("loading selections", zap.Error(err))
	}
	logger.Info("selections loaded",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("location", backend.Location),
		zap.Int("records", n),
		zap.Bool("encrypted", cipher.Initialized()),
		zap.Duration("elapsed", time.Since(loadStart)),
	)

	// Scripting
	var scripts *scripting.Manager
	var hook reaction.DamageHook
	if cfg.Scripting.Dir != "" {
		scripts = scripting.NewManager(cfg.Scripting.InstructionLimit, logger)
		scripts.LookupPower = func(id string) *scripting.PowerInfo {
			def, err := catalog.Get(id)
			if err != nil {
				return nil
			}
			return powerInfo(def)
		}
		if _, err := scripts.LoadDirectory(cfg.Scripting.Dir); err != nil {
			logger.Fatal("loading power scripts", zap.Error(err))
		}
		hook = scripts
	}

	ticks := tick.NewLoop(cfg.Maintenance.TickInterval, logger)
	svc := powers.NewService(catalog, store, cipher, session.NewManager(), ticks, hook, logger, powers.Options{
		FlightCheckTicks:  cfg.Maintenance.FlightCheckTicks,
		SelectionCooldown: cfg.Maintenance.SelectionCooldown,
	})
	svc.Start()

	svc.OnReload(func(context.Context) error {
		next, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("re-reading config: %w", err)
		}
		c, err := storage.OpenCipher(next.Encryption)
		if err != nil {
			return fmt.Errorf("re-reading encryption settings: %w", err)
		}
		svc.SetCipher(c)
		return nil
	})
	if scripts != nil {
		svc.OnReload(func(context.Context) error {
			_, err := scripts.LoadDirectory(cfg.Scripting.Dir)
			return err
		})
	}

	// gRPC
	grpcServer := grpc.NewServer()
	gameserver.NewPowerServer(svc, ticks, cfg.Admin.TokenHash, logger).Register(grpcServer)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	lc := server.NewLifecycle(logger)
	lc.Add("tick", &server.FuncService{StartFn: ticks.Start, StopFn: ticks.Stop})
	lc.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.GameServer.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GameServer.Addr(), err)
			}
			healthSrv.SetServingStatus(gameserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
			logger.Info("gRPC server listening", zap.String("addr", cfg.GameServer.Addr()))
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			healthSrv.Shutdown()
			grpcServer.GracefulStop()
		},
	})
	lc.AfterStop("selections", svc.Shutdown)
	lc.AfterStop("storage", func(context.Context) error {
		backend.Close()
		if scripts != nil {
			scripts.Close()
		}
		return nil
	})

	logger.Info("powers server initialized", zap.Duration("startup", time.Since(start)))

	if err := lc.Run(ctx); err != nil {
		logger.Error("server exited with error", zap.Error(err))
	}
}

// ensureEncryptionKey generates a master password when encryption is enabled
// without one. The new password is written to path and logged once.
func ensureEncryptionKey(path string, cfg *config.Config, gen func() (string, error), logger *zap.Logger) error {
	generated, err := config.EnsureEncryptionKey(path, cfg, gen)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("generated a new encryption master password; keep the config file safe",
			zap.String("config", path),
			zap.String("master_password", cfg.Encryption.MasterPassword),
		)
	}
	return nil
}

func powerInfo(def *power.Definition) *scripting.PowerInfo {
	weak := make([]string, len(def.Traits.WeakTo))
	for i, item := range def.Traits.WeakTo {
		weak[i] = string(item)
	}
	return &scripting.PowerInfo{
		ID:        def.ID,
		Name:      def.Name,
		MaxHealth: def.Traits.MaxHealth,
		CanFly:    def.Traits.CanFly,
		WeakTo:    weak,
	}
}
