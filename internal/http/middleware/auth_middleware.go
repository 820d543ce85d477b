package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mirkodev/notes-service/internal/domain"
	"github.com/mirkodev/notes-service/internal/http/response"
	"github.com/mirkodev/notes-service/internal/security"
	"github.com/mirkodev/notes-service/internal/service"
)

type contextKey string

const (
	userContextKey   contextKey = "user"
	claimsContextKey contextKey = "claims"
)

const (
	detailUnauthenticated = "Credenciales de autenticación inválidas"
	detailAccountLocked   = "El usuario esta desactivado"
	detailAdminRequired   = "Se requiere permiso de administrador"
	detailUserNotFound    = "Usuario no encontrado o no existe"
	detailStorageError    = "Error al acceder a la base de datos."
)

// Authenticate resolves the Bearer token into a user and session claims.
// Invalid tokens and revoked sessions are indistinguishable to the caller:
// both are a plain 401.
func Authenticate(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				response.Detail(w, http.StatusUnauthorized, detailUnauthenticated)
				return
			}
			user, claims, err := auth.Resolve(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrUnauthenticated):
					w.Header().Set("WWW-Authenticate", "Bearer")
					response.Detail(w, http.StatusUnauthorized, detailUnauthenticated)
				case errors.Is(err, service.ErrUserNotFound):
					response.Detail(w, http.StatusNotFound, detailUserNotFound)
				default:
					slog.ErrorContext(r.Context(), "identity resolution failed", "error", err)
					response.Detail(w, http.StatusServiceUnavailable, detailStorageError)
				}
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = context.WithValue(ctx, claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActive rejects disabled accounts. Disabled-ness is enforced here,
// at resolution time, not at login.
func RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			response.Detail(w, http.StatusUnauthorized, detailUnauthenticated)
			return
		}
		if user.Disabled {
			response.Detail(w, http.StatusLocked, detailAccountLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin must run after RequireActive; a disabled admin is still
// locked out before the role check.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			response.Detail(w, http.StatusUnauthorized, detailUnauthenticated)
			return
		}
		if !user.IsAdmin() {
			response.Detail(w, http.StatusForbidden, detailAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(*domain.User)
	return u, ok
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*security.Claims)
	return c, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
