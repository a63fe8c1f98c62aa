package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rentoapp/authflow"
)

type userContextKey struct{}

// UserFromContext returns the user stored by [RequireSession].
func UserFromContext(ctx context.Context) (*authflow.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*authflow.User)
	return u, ok
}

// SessionVerifier resolves an access token to its user. *identity.Provider
// implements it.
type SessionVerifier interface {
	GetUser(ctx context.Context, accessToken string) (*authflow.User, error)
}

// RequireSession rejects requests whose bearer token does not resolve to a
// live session.
func RequireSession(v SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			user, err := v.GetUser(r.Context(), token)
			if err != nil || user == nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
