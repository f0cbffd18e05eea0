// Command pixelhuntd runs the spot-the-difference engine: the detection API,
// the game catalog and the realtime play server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixelhunt/pixelhunt/cache"
	"github.com/pixelhunt/pixelhunt/config"
	"github.com/pixelhunt/pixelhunt/detect"
	"github.com/pixelhunt/pixelhunt/events"
	"github.com/pixelhunt/pixelhunt/game"
	"github.com/pixelhunt/pixelhunt/logger"
	"github.com/pixelhunt/pixelhunt/metrics/prometheus"
	"github.com/pixelhunt/pixelhunt/server"
	"github.com/pixelhunt/pixelhunt/storage/local"
	"github.com/pixelhunt/pixelhunt/ws"
)

const shutdownGrace = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *verbose || cfg.Verbose {
		logger.SetVerbose(true)
	}

	if err := run(cfg); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	store, err := local.NewFileStore(cfg.Storage.Dir, local.WithAssetPrefix(cfg.Storage.AssetPrefix))
	if err != nil {
		return err
	}

	var diffCache cache.Store
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		diffCache = cache.NewRedisStore(client)
		logger.Info("using redis difference cache", "addr", cfg.Redis.Addr)
	} else {
		diffCache = cache.NewMemoryStore()
	}

	bus := events.NewBus()
	bus.SubscribeAll(prometheus.NewGameplayListener().Listener())

	constants := game.NewConstantsHolder(cfg.Game.Constants)
	registry := game.NewRegistry(game.RegistryConfig{
		Bus:           bus,
		Constants:     constants,
		Cache:         diffCache,
		Differences:   store,
		Catalog:       store,
		LimitedBudget: cfg.Game.LimitedBudget,
	})
	engine := detect.NewEngine(detect.Config{
		Cache:       diffCache,
		Assets:      store,
		Differences: store,
		Catalog:     store,
		Radius:      cfg.Detection.Radius,
		Thresholds:  cfg.Detection.Thresholds,
	})
	hub := ws.NewHub(registry, bus)

	exporter := prometheus.NewExporter(cfg.Server.MetricsAddr)
	serverCfg := server.Config{
		Registry:    registry,
		Detector:    engine,
		Catalog:     store,
		Differences: store,
		Assets:      store,
		Constants:   constants,
		Socket:      hub,
		AssetPath:   store.AssetPath,
	}
	if cfg.Server.MetricsAddr != "" {
		// Dedicated metrics listener, e.g. for a scrape-only network.
		go func() {
			if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics exporter failed", "error", err)
			}
		}()
	} else {
		serverCfg.Metrics = exporter.Handler()
	}

	srv := server.New(serverCfg, server.WithAddr(cfg.Server.Addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pixelhunt daemon listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := exporter.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", "error", err)
	}
	return nil
}
