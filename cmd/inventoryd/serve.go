package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/rl1809/inventory-tracker/internal/adapter/auth"
	"github.com/rl1809/inventory-tracker/internal/adapter/handler"
	"github.com/rl1809/inventory-tracker/internal/adapter/render"
	"github.com/rl1809/inventory-tracker/internal/adapter/storage"
	"github.com/rl1809/inventory-tracker/internal/core/service"
	"github.com/rl1809/inventory-tracker/internal/logger"
)

const (
	shutdownTimeout     = 5 * time.Second
	healthCheckInterval = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC health service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("server")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, cache, err := openCache(ctx)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn().Msg("REDIS_ADDR not set: idempotency keys and rate limiting disabled")
	}

	lots := storage.NewLotStore(db)
	tokens := auth.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL)
	users := service.NewUserService(storage.NewUserStore(db), auth.NewBcryptHasher(auth.DefaultCost), tokens)

	httpHandler := handler.NewHTTPHandler(handler.Deps{
		Inventory: service.NewInventoryService(lots),
		Receipts:  service.NewReceiptService(lots, cache, render.NewPDFRenderer(cfg.CompanyName, cfg.CompanyAddress)),
		Dashboard: service.NewDashboardService(lots),
		Users:     users,
		Tokens:    tokens,
		Cache:     cache,
		DB:        db,
		Opts: handler.Options{
			CORSOrigin:      cfg.CORSOrigin,
			RateLimitMax:    cfg.RateLimitMax,
			RateLimitWindow: cfg.RateLimitWindow,
			MaxUploadBytes:  cfg.MaxUploadBytes,
		},
	})

	// gRPC health
	grpcServer := grpc.NewServer()
	health := handler.NewGRPCHealth(db)
	health.Register(grpcServer)
	go health.Watch(ctx, healthCheckInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server error")
		}
	}()

	// HTTP
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	log.Info().Msg("HTTP server stopped")

	cancel()
	health.Shutdown()
	grpcServer.GracefulStop()
	log.Info().Msg("gRPC server stopped")

	return nil
}
