package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitcg/gitcg-server-go/internal/cache"
	"github.com/gitcg/gitcg-server-go/internal/game/catalog"
	"github.com/gitcg/gitcg-server-go/internal/metrics"
	"github.com/gitcg/gitcg-server-go/internal/repository"
	"github.com/gitcg/gitcg-server-go/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the match server",
	Long:  `Start the HTTP/WebSocket and gRPC listeners. Replay persistence and the resync cache are enabled when database.dsn and redis.address are set.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting gitcg server",
		zap.String("version", version),
		zap.String("config", configPath),
	)
	if cfg.Server.AdminPasswordHash == "" {
		logger.Warn("admin password not configured; admin calls disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(logger)
	if err != nil {
		return fmt.Errorf("failed to load card catalog: %w", err)
	}
	logger.Info("card catalog loaded", zap.Strings("decks", cat.DeckNames()))

	opts := server.ManagerOptions{
		Catalog:    cat,
		Rules:      cfg.Game.Rules(),
		RPCTimeout: cfg.Server.RPCTimeout,
		Seed:       cfg.Game.Seed,
		Logger:     logger,
	}

	if cfg.Database.DSN != "" {
		pool, err := repository.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := repository.Migrate(ctx, pool); err != nil {
			return err
		}
		opts.Store = repository.NewMatchRepository(pool)
		logger.Info("replay persistence enabled")
	}

	if cfg.Redis.Address != "" {
		client, err := cache.NewClient(cfg.Redis.Address)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Address, err)
		}
		opts.Cache = cache.NewResyncCache(client, cfg.Redis.TTL, logger)
		logger.Info("resync cache enabled", zap.String("address", cfg.Redis.Address))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		opts.Metrics = m
	}

	mgr := server.NewManager(opts)

	httpServer := &http.Server{
		Addr: cfg.Server.HTTP.Address,
		Handler: server.NewHTTPHandler(server.HTTPOptions{
			Manager:           mgr,
			Metrics:           m,
			AdminPasswordHash: cfg.Server.AdminPasswordHash,
			Logger:            logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer := server.NewGRPCServer(mgr, cfg.Server.AdminPasswordHash, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPC.Address, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("matches did not stop in time", zap.Error(err))
		}
		grpcServer.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("gitcg server stopped")
	return err
}
