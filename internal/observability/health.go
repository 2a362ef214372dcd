package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthResponse is the liveness payload of both services
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

// HealthChecker serves process liveness over HTTP and gRPC. Liveness is
// deliberately independent of broker or database connectivity: once the
// process is listening it reports OK until shutdown begins.
type HealthChecker struct {
	service    string
	path       string
	grpcHealth *health.Server
	httpServer *http.Server
	logger     *zap.Logger
}

// NewHealthChecker creates a health checker for the named service answering
// on the given HTTP path
func NewHealthChecker(service, path string, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		service:    service,
		path:       path,
		grpcHealth: health.NewServer(),
		logger:     logger,
	}
}

// RegisterGRPC registers the health service with the gRPC server
func (h *HealthChecker) RegisterGRPC(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.grpcHealth)
	h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

// Handler returns the HTTP handler serving the health path. Every other
// path gets a 404.
func (h *HealthChecker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(h.path, h.handleHealth)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return mux
}

// StartHTTPServer starts the HTTP health server on addr and blocks
func (h *HealthChecker) StartHTTPServer(addr string) error {
	h.httpServer = &http.Server{
		Addr:    addr,
		Handler: h.Handler(),
	}

	h.logger.Info("starting HTTP health server",
		zap.String("addr", addr),
		zap.String("path", h.path),
	)
	return h.httpServer.ListenAndServe()
}

// Shutdown stops serving health. gRPC flips to NOT_SERVING first so load
// balancers drain before the HTTP listener closes.
func (h *HealthChecker) Shutdown(ctx context.Context) error {
	h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	if h.httpServer != nil {
		return h.httpServer.Shutdown(ctx)
	}
	return nil
}

func (h *HealthChecker) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   h.service,
	})
}
