package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/repository"
)

// ContextKey is a type for context keys used by the auth middleware.
type ContextKey string

// UserKey is the context key under which the authenticated user is stored.
const UserKey ContextKey = "pixie_user"

// Auth returns middleware that resolves the bearer API key in the
// Authorization header to a user row and attaches it to the request context.
// A missing or unknown key fails the request with Unauthorized; handlers that
// also accept anonymous traffic should use OptionalAuth instead.
func Auth(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(r, users)
			if err != nil {
				apperror.As(err).WriteJSON(w)
				return
			}
			if user == nil {
				apperror.New(apperror.Unauthorized, "missing or invalid API key").WriteJSON(w)
				return
			}
			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the bearer API key if present but never fails the
// request when it is absent or invalid; handlers fall back to anonymous
// behavior via GetUser returning nil.
func OptionalAuth(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(r, users)
			if err == nil && user != nil {
				r = r.WithContext(context.WithValue(r.Context(), UserKey, user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates a route on the authenticated user's is_admin flag. It
// must run after Auth in the chain.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				apperror.New(apperror.Unauthorized, "missing or invalid API key").WriteJSON(w)
				return
			}
			if !user.IsAdmin {
				apperror.New(apperror.Forbidden, "admin access required").WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveUser(r *http.Request, users repository.UserRepository) (*models.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	key := strings.TrimPrefix(header, "Bearer ")
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}

	user, err := users.GetByAPIKey(r.Context(), key)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	return user, nil
}

// GetUser extracts the authenticated user from context, or nil if none.
func GetUser(ctx context.Context) *models.User {
	if v := ctx.Value(UserKey); v != nil {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}
