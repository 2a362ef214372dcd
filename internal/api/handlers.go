package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tomerk122/SRE/internal/auth"
	"github.com/tomerk122/SRE/internal/change"
	"github.com/tomerk122/SRE/internal/store"
	"go.uber.org/zap"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	LastLogin string `json:"lastLogin,omitempty"`
}

func toUserResponse(u store.User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: formatMillis(u.CreatedUnixMillis),
		UpdatedAt: formatMillis(u.UpdatedUnixMillis),
	}
	if u.LastLoginUnixMillis.Valid {
		resp.LastLogin = formatMillis(u.LastLoginUnixMillis.Int64)
	}
	return resp
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Username, req.Email, hash)
	if errors.Is(err, store.ErrUsernameTaken) || errors.Is(err, store.ErrEmailTaken) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to create user", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.publisher.PublishAsync(change.OpInsert, "users", map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	}, nil)

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	s.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, store.ErrUserNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, req.Password)) {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("failed to load user", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, tokenID, err := s.jwt.Generate(strconv.FormatInt(user.ID, 10), user.Username)
	if err != nil {
		s.logger.Error("failed to issue token", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	expires := time.Now().Add(s.jwt.Expiry())
	if err := s.store.CreateSession(r.Context(), tokenID, user.ID, expires); err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.publisher.PublishAsync(change.OpInsert, "sessions", map[string]any{
		"user_id":    user.ID,
		"expires_at": expires.UTC().Format(time.RFC3339),
	}, &user.ID)

	// The last-login change record only goes out if the row was actually
	// updated; a failed update is logged and the login still succeeds.
	now := time.Now().UnixMilli()
	if err := s.store.TouchLastLogin(r.Context(), user.ID, now); err != nil {
		s.logger.Error("failed to record last login", zap.Error(err))
	} else {
		user.LastLoginUnixMillis = sql.NullInt64{Int64: now, Valid: true}
		s.publisher.PublishAsync(change.OpUpdate, "users", map[string]any{
			"id":         user.ID,
			"last_login": formatMillis(now),
		}, &user.ID)
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  toUserResponse(user),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	user, err := s.store.GetUserByID(r.Context(), identity.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load user", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	var req updateProfileRequest
	if !s.decode(w, r, &req) {
		return
	}

	current, err := s.store.GetUserByID(r.Context(), identity.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load user", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	username := current.Username
	if req.Username != nil {
		username = *req.Username
	}
	email := current.Email
	if req.Email != nil {
		email = *req.Email
	}

	user, err := s.store.UpdateProfile(r.Context(), identity.UserID, username, email)
	if errors.Is(err, store.ErrUsernameTaken) || errors.Is(err, store.ErrEmailTaken) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to update profile", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.publisher.PublishAsync(change.OpUpdate, "users", map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	}, &identity.UserID)

	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	err := s.store.DeleteSession(r.Context(), identity.TokenID)
	if errors.Is(err, store.ErrSessionNotFound) {
		s.writeError(w, http.StatusUnauthorized, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete session", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.publisher.PublishAsync(change.OpDelete, "sessions", map[string]any{
		"user_id": identity.UserID,
	}, &identity.UserID)

	s.logger.Info("user logged out", zap.Int64("user_id", identity.UserID))
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
