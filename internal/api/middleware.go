package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tomerk122/SRE/internal/auth"
	"go.uber.org/zap"
)

// Identity is the authenticated caller attached to a request context
type Identity struct {
	UserID  int64
	TokenID string
}

type contextKey struct{}

func identityFrom(ctx context.Context) Identity {
	identity, _ := ctx.Value(contextKey{}).(Identity)
	return identity
}

// requireAuth validates the bearer token and requires a live session for
// its token ID, so logged-out tokens fail even before they expire.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}

		claims, err := s.jwt.Validate(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		live, err := s.store.SessionExists(r.Context(), claims.ID)
		if err != nil {
			s.logger.Error("failed to check session", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !live {
			s.writeError(w, http.StatusUnauthorized, "session expired or revoked")
			return
		}

		identity := Identity{UserID: userID, TokenID: claims.ID}
		next(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, identity)))
	}
}
