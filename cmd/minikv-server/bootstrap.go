package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/yndnr/minikv/internal/core/domain"
	"github.com/yndnr/minikv/internal/core/service"
	"github.com/yndnr/minikv/internal/infra/buildinfo"
	"github.com/yndnr/minikv/internal/infra/confloader"
	"github.com/yndnr/minikv/internal/infra/shutdown"
	"github.com/yndnr/minikv/internal/replication"
	"github.com/yndnr/minikv/internal/server/config"
	"github.com/yndnr/minikv/internal/server/httpserver"
	"github.com/yndnr/minikv/internal/server/httpserver/handler"
	"github.com/yndnr/minikv/internal/server/redisserver"
	"github.com/yndnr/minikv/internal/storage/memory"
	"github.com/yndnr/minikv/internal/storage/rdb"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/internal/telemetry/metric"
)

const shutdownTimeout = 10 * time.Second

var errLinkFailed = errors.New("replication link failed")

// run starts the server and blocks until shutdown.
func run(parent context.Context, configFile string, overrides map[string]any) error {
	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting minikv-server",
		"version", buildinfo.Version,
		"role", roleOf(cfg),
		"config", configFile)

	store := memory.New()
	restoreSnapshot(cfg.SnapshotPath(), store, log)

	masterAddr, err := cfg.MasterAddr()
	if err != nil {
		return err
	}
	state, err := replication.NewState(roleOf(cfg), masterAddr)
	if err != nil {
		return fmt.Errorf("init replication state: %w", err)
	}
	repl := replication.NewManager(state, replication.WithLogger(log.Slog()))

	registry := metric.NewRegistry()
	engine := service.NewEngine(store, repl,
		service.WithSnapshot(cfg.Storage.Dir, cfg.Storage.DBFilename),
		service.WithMetrics(registry),
		service.WithLogger(log.Slog()),
	)
	if err := registry.Register(metric.NewCollector(engine)); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	srv := redisserver.New(&redisserver.Config{
		Address:      cfg.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimit:    cfg.Server.RateLimit,
	}, engine, redisserver.WithLogger(log), redisserver.WithMetrics(registry))
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	shutdownHandler := shutdown.NewHandler(shutdownTimeout)
	shutdownHandler.SetLogger(log.Slog())

	// Hooks run in reverse order of registration.
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("closing store")
		return store.Close()
	})
	shutdownHandler.OnShutdown(func(context.Context) error {
		return repl.Close()
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down redis server")
		return srv.Shutdown(ctx)
	})

	if err := srv.Start(ctx); err != nil {
		return err
	}

	var link *replication.Link
	if masterAddr != "" {
		link = replication.NewLink(replication.LinkConfig{
			MasterAddr:       masterAddr,
			ListeningPort:    srv.Addr().(*net.TCPAddr).Port,
			SnapshotPath:     cfg.SnapshotPath(),
			DialTimeout:      cfg.Replication.DialTimeout,
			HandshakeTimeout: cfg.Replication.HandshakeTimeout,
		}, state, engine, store, log.Slog())
		go runLink(ctx, link, cancel)
	}

	if cfg.Metrics.Addr != "" {
		httpSrv, err := startHTTP(cfg.Metrics.Addr, registry, statusFunc(engine, link), log)
		if err != nil {
			return err
		}
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return httpSrv.Shutdown(ctx)
		})
	}

	if configFile != "" {
		watcher, err := watchConfig(configFile, overrides, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	log.Info("server started", "addr", srv.Addr().String())
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	if cause := context.Cause(ctx); errors.Is(cause, errLinkFailed) {
		return cause
	}
	log.Info("server stopped gracefully")
	return nil
}

func roleOf(cfg *config.ServerConfig) domain.Role {
	if cfg.IsReplica() {
		return domain.RoleReplica
	}
	return domain.RoleMaster
}

// loadConfig loads defaults, then file, environment and flag overrides,
// and validates the result.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger and installs it as default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	logger.SetDefault(log)
	slog.SetDefault(log.Slog())
	return log, nil
}

// restoreSnapshot creates an empty snapshot if the configured file is
// missing, then loads its entries into store. Failures are logged and the
// server starts empty.
func restoreSnapshot(path string, store *memory.Store, log logger.Logger) {
	if path == "" {
		return
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := rdb.WriteRaw(path, rdb.EmptySnapshot()); err != nil {
			log.Warn("failed to create empty snapshot", "path", path, "error", err)
			return
		}
		log.Info("created empty snapshot", "path", path)
	}

	entries, err := rdb.LoadEntries(path)
	if err != nil {
		log.Error("failed to load snapshot, starting empty", "path", path, "error", err)
		return
	}
	n := store.Load(entries)
	log.Info("snapshot loaded", "path", path, "keys", n, "skipped_expired", len(entries)-n)
}

// runLink runs the replication link. Any exit other than shutdown is
// fatal to the process.
func runLink(ctx context.Context, link *replication.Link, cancel context.CancelCauseFunc) {
	err := link.Run(ctx)
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = errors.New("connection closed by master")
	}
	cancel(fmt.Errorf("%w: %w", errLinkFailed, err))
}

func statusFunc(engine *service.Engine, link *replication.Link) handler.StatusFunc {
	return func() handler.Status {
		state := engine.Replication().State()
		st := handler.Status{
			Role:              string(state.Role()),
			Keys:              engine.KeyCount(),
			ConnectedReplicas: engine.ReplicaCount(),
			ReplID:            state.ReplID(),
			ReplicationOffset: state.Offset(),
		}
		if link != nil {
			st.Link = link.Status().String()
		}
		return st
	}
}

// startHTTP starts the metrics and health endpoint in the background.
func startHTTP(addr string, registry *metric.Registry, status handler.StatusFunc, log logger.Logger) (*httpserver.Server, error) {
	srv := httpserver.New(addr, httpserver.NewRouter(&httpserver.RouterConfig{
		Metrics: registry.Handler(),
		Status:  status,
		Logger:  log.Slog(),
	}))
	if err := srv.Listen(); err != nil {
		return nil, err
	}

	go func() {
		log.Info("metrics server listening", "addr", srv.Addr().String())
		if err := srv.Serve(); err != nil {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv, nil
}

// watchConfig reloads the log level whenever the configuration file
// changes. Other settings need a restart.
func watchConfig(path string, overrides map[string]any, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		_ = watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(string) {
		reloadLogLevel(path, overrides, log)
	})
	watcher.StartAsync()
	return watcher, nil
}

func reloadLogLevel(path string, overrides map[string]any, log logger.Logger) {
	cfg, err := loadConfig(path, overrides)
	if err != nil {
		log.Warn("ignoring configuration change", "error", err)
		return
	}
	if cfg.Log.Level == logger.GetLevel() {
		return
	}
	logger.SetLevel(cfg.Log.Level)
	log.Info("log level changed", "level", logger.GetLevel())
}
