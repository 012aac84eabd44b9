package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/dealflow/internal/catalog"
	"github.com/fentz26/dealflow/internal/config"
	"github.com/fentz26/dealflow/internal/controlplane"
	"github.com/fentz26/dealflow/internal/notify"
	"github.com/fentz26/dealflow/internal/scheduler"
	"github.com/fentz26/dealflow/internal/store"
	"github.com/fentz26/dealflow/internal/telemetry"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the dealflow daemon",
	Long:  `Starts the dealflow daemon which serves the HTTP API and runs the overdue sweeper.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
}

// engine holds the long-lived components shared by the daemon and the MCP server.
type engine struct {
	cfg     *config.Config
	store   store.Backend
	pub     notify.Publisher
	metrics *telemetry.Metrics
	service *controlplane.Service
}

func (r *engine) Close() {
	if err := r.pub.Close(); err != nil {
		slog.Warn("closing notifier", "err", err)
	}
	if err := r.store.Close(); err != nil {
		slog.Warn("closing store", "err", err)
	}
}

func newRedis(cfg *config.Config) *notify.RedisPublisher {
	return notify.NewRedisPublisher(notify.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
}

func openEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	cat, err := catalog.Default()
	if cfg.Catalog.Dir != "" {
		cat, err = catalog.LoadDir(cfg.Catalog.Dir)
	}
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.Path, cfg.Store.URL)
	if err != nil {
		return nil, err
	}

	var pub notify.Publisher = notify.Nop{}
	if cfg.Redis.Addr != "" {
		rp := newRedis(cfg)
		if err := rp.Ping(ctx); err != nil {
			slog.Warn("redis unavailable; change notifications disabled", "addr", cfg.Redis.Addr, "err", err)
			_ = rp.Close()
		} else {
			pub = rp
		}
	}

	metrics, err := telemetry.New(nil)
	if err != nil {
		s.Close()
		return nil, err
	}

	return &engine{
		cfg:     cfg,
		store:   s,
		pub:     pub,
		metrics: metrics,
		service: controlplane.NewService(s, cat, pub, metrics),
	}, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	logger.Info("starting dealflow daemon", "store", cfg.Store.Driver)

	ctx := context.Background()
	rt, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	limiter := controlplane.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.Burst)
	server := controlplane.NewServer(rt.service, cfg.Server.Listen, limiter, rt.metrics)

	sched := scheduler.New(rt.store, rt.pub, rt.metrics, &cfg.Sweeper)
	server.SetScheduler(sched)
	sched.Start()
	defer sched.Stop()

	pruneDone := make(chan struct{})
	defer close(pruneDone)
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-pruneDone:
				return
			case <-t.C:
				limiter.Prune()
			}
		}
	}()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "err", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	logger.Info("shutdown complete")
	return nil
}
