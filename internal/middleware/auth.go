// Package middleware contains HTTP middleware for the API server.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed into a stack in main.
package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/handler"
	"github.com/faxingberling1/mailward/internal/repository"
)

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware authenticates requests by API key and resolves the owning
// workspace.
type AuthMiddleware struct {
	store  *repository.Store
	logger *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(store *repository.Store, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		store:  store,
		logger: logger,
	}
}

// RequireWorkspace rejects requests without a valid API key. Suspended and
// soft-deleted workspaces are rejected here so no consuming handler ever
// sees them.
func (m *AuthMiddleware) RequireWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := bearerToken(r)
		if !ok {
			handler.Error(w, r, domain.Unauthorized("auth", "missing API key"))
			return
		}

		sum := sha256.Sum256([]byte(key))
		keyHash := hex.EncodeToString(sum[:])

		workspace, isAdmin, err := m.store.Workspaces.GetByAPIKeyHash(r.Context(), keyHash)
		if errors.Is(err, repository.ErrNotFound) {
			handler.Error(w, r, domain.Unauthorized("auth", "invalid API key"))
			return
		}
		if err != nil {
			handler.Error(w, r, domain.Internal(err, "auth", "failed to resolve API key"))
			return
		}

		if !workspace.IsOperational() {
			handler.Error(w, r, domain.Suspended("auth"))
			return
		}

		// Best effort, failures don't block the request.
		if err := m.store.Workspaces.TouchAPIKey(r.Context(), keyHash, time.Now()); err != nil {
			m.logger.Debug("failed to touch api key", "error", err)
		}

		next.ServeHTTP(w, r.WithContext(handler.WithWorkspace(r.Context(), workspace, isAdmin)))
	})
}

// RequireAdmin additionally rejects keys without admin rights. Must run
// inside RequireWorkspace.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !handler.IsAdmin(r.Context()) {
			handler.Error(w, r, domain.Forbidden("auth", "admin API key required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stack composes middlewares so the first listed runs outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// bearerToken extracts the Bearer credential from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	return token, token != ""
}
