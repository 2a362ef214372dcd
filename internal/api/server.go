package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tomerk122/SRE/internal/auth"
	"github.com/tomerk122/SRE/internal/change"
	"github.com/tomerk122/SRE/internal/observability"
	"github.com/tomerk122/SRE/internal/store"
	"go.uber.org/zap"
)

// ServiceName identifies the API process in health responses
const ServiceName = "backend-api"

// Publisher is the change-record side channel the handlers notify after
// each successful database mutation. Publishing never blocks a handler.
type Publisher interface {
	PublishAsync(op change.Operation, table string, data map[string]any, userID *int64)
}

// Store is the persistence surface the handlers depend on, satisfied by
// *store.Store
type Store interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (store.User, error)
	GetUserByID(ctx context.Context, id int64) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	UpdateProfile(ctx context.Context, id int64, username, email string) (store.User, error)
	TouchLastLogin(ctx context.Context, id int64, nowMillis int64) error
	CreateSession(ctx context.Context, tokenID string, userID int64, expires time.Time) error
	DeleteSession(ctx context.Context, tokenID string) error
	SessionExists(ctx context.Context, tokenID string) (bool, error)
}

// Server is the HTTP surface of the backend API
type Server struct {
	store     Store
	jwt       *auth.JWTManager
	publisher Publisher
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewServer wires the API handlers to their collaborators
func NewServer(st Store, jwt *auth.JWTManager, publisher Publisher, logger *zap.Logger) *Server {
	return &Server{
		store:     st,
		jwt:       jwt,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Routes returns the API handler
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/profile", s.requireAuth(s.handleGetProfile))
	mux.HandleFunc("PUT /api/profile", s.requireAuth(s.handleUpdateProfile))
	mux.HandleFunc("POST /api/logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, observability.HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
