package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tomerk122/SRE/internal/config"
	"github.com/tomerk122/SRE/internal/logging"
	"github.com/tomerk122/SRE/internal/msg"
	"github.com/tomerk122/SRE/internal/observability"
	"github.com/tomerk122/SRE/internal/processor"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// changeSource is the consuming side of the pipeline
type changeSource interface {
	Run(ctx context.Context, handler func(context.Context, msg.Record) error) error
	Close()
}

// liveness is the part of the health checker the pipeline tears down
type liveness interface {
	Shutdown(ctx context.Context) error
}

func main() {
	cfg := config.LoadConfig("kafka-consumer")

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting kafka-consumer service",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("kafka_brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.ChangeTopic),
		zap.String("group", cfg.ConsumerGroup),
	)

	healthChecker := observability.NewHealthChecker(cfg.ServiceName, "/health", logger)

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	// Any failure to join the group here is fatal; the supervisor is
	// responsible for restarting the process.
	consumer, err := msg.NewConsumer(msg.ConsumerConfig{
		Brokers:           brokers,
		Group:             cfg.ConsumerGroup,
		Topics:            []string{cfg.ChangeTopic},
		HeartbeatInterval: cfg.HeartbeatInterval,
		SessionTimeout:    cfg.SessionTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create kafka consumer", zap.Error(err))
	}

	proc := processor.NewProcessor(processor.NewLogSink(logger), logger)

	// gRPC health server
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

	// HTTP health server
	httpErrCh := make(chan error, 1)
	go func() {
		if err := healthChecker.StartHTTPServer(cfg.HTTPAddr()); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
	}()

	// Start the pipeline
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipelineDone := make(chan error, 1)
	go func() {
		pipelineDone <- runPipeline(ctx, consumer, proc.Handle, healthChecker, logger)
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
	case err := <-pipelineDone:
		logger.Fatal("consumer terminated", zap.Error(err))
	}

	logger.Info("shutting down gracefully...")
	cancel()

	select {
	case <-pipelineDone:
	case <-time.After(15 * time.Second):
		logger.Warn("timed out waiting for pipeline to stop")
	}

	logger.Info("processed record total", zap.Int64("total", proc.Stats().Total()))
	grpcServer.GracefulStop()

	logger.Info("kafka-consumer service stopped")
}

// runPipeline drives the consume loop and owns the teardown ordering: when
// ctx is cancelled the loop returns only after the in-flight record has
// finished, the consumer leaves the group, and only then does the health
// endpoint stop answering.
func runPipeline(ctx context.Context, source changeSource, handler func(context.Context, msg.Record) error, health liveness, logger *zap.Logger) error {
	runErr := source.Run(ctx, handler)
	source.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health checker", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
