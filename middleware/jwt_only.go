package middleware

import (
	"context"
	"net/http"

	"github.com/rentoapp/authflow/jwt"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by [RequireToken].
func ClaimsFromContext(ctx context.Context) (*jwt.SessionClaims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.SessionClaims)
	return c, ok
}

// RequireToken verifies the bearer JWT without any store lookup. A revoked
// session is accepted until its token expires.
func RequireToken(m *jwt.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := m.Parse(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
