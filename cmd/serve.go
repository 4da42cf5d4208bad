package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bnrm/libadmin/internal/database"
	"github.com/bnrm/libadmin/internal/handler"
	"github.com/bnrm/libadmin/internal/repository"
	"github.com/bnrm/libadmin/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))

	// ── 2. Wire up layers ────────────────────────────────────────────────
	activity := repository.NewActivityRepository(pool)
	rangeSvc := service.NewRangeService(repository.NewRangeRepository(pool), activity, cfg.Numbering, logger)
	bookingSvc, err := service.NewBookingService(
		repository.NewSpaceRepository(pool), repository.NewBookingRepository(pool), activity, cfg.Booking, logger)
	if err != nil {
		return err
	}
	reviewSvc := service.NewReviewService(repository.NewRequestRepository(pool), activity, logger)

	// ── 3. Build the router ───────────────────────────────────────────────
	router := handler.NewRouter(
		handler.NewRangeHandler(rangeSvc, logger),
		handler.NewBookingHandler(bookingSvc, logger),
		handler.NewReviewHandler(reviewSvc, logger),
		logger)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
