package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tomerk122/SRE/internal/api"
	"github.com/tomerk122/SRE/internal/auth"
	"github.com/tomerk122/SRE/internal/change"
	"github.com/tomerk122/SRE/internal/config"
	"github.com/tomerk122/SRE/internal/logging"
	"github.com/tomerk122/SRE/internal/msg"
	"github.com/tomerk122/SRE/internal/observability"
	"github.com/tomerk122/SRE/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	cfg := config.LoadConfig("backend-api")

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting backend-api service",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("kafka_brokers", cfg.KafkaBrokers),
		zap.String("db_path", cfg.DBPath),
	)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	// The producer is a long-lived shared connection; it is safe for
	// concurrent in-flight requests and a broker outage does not fail
	// startup, only the best-effort publishes.
	brokers := strings.Split(cfg.KafkaBrokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	producer, err := msg.NewProducer(brokers, cfg.ServiceName, logger)
	if err != nil {
		logger.Fatal("failed to create kafka producer", zap.Error(err))
	}

	publisher := change.NewPublisher(producer, cfg.ChangeTopic, logger)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry, api.ServiceName)

	apiServer := api.NewServer(st, jwtManager, publisher, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: apiServer.Routes(),
	}

	// gRPC health server
	healthChecker := observability.NewHealthChecker(api.ServiceName, "/api/health", logger)
	grpcServer := grpc.NewServer()
	healthChecker.RegisterGRPC(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	grpcErrCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			grpcErrCh <- err
		}
	}()

	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
	}()

	// Periodically sweep expired sessions
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := st.DeleteExpiredSessions(ctx)
				if err != nil {
					logger.Error("failed to sweep expired sessions", zap.Error(err))
				} else if n > 0 {
					logger.Info("swept expired sessions", zap.Int64("deleted", n))
				}
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-grpcErrCh:
		logger.Error("gRPC server error", zap.Error(err))
	case err := <-httpErrCh:
		logger.Error("HTTP server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down HTTP server", zap.Error(err))
	}
	if err := healthChecker.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health checker", zap.Error(err))
	}
	grpcServer.GracefulStop()
	producer.Close()

	logger.Info("backend-api service stopped")
}
