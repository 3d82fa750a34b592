package main

import (
	"context"
	"net/http"
	"strings"

	"classroom/internal/auth"
)

// context key type for storing auth claims in context
type authContextKey struct{}

// getClaimsFromContext extracts auth claims from the context, if present.
func getClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok
}

// authenticate enforces JWT bearer authentication and attaches the verified
// claims to the request context for downstream handlers.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			errorJSON(w, http.StatusUnauthorized, "you are not logged in")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" {
			errorJSON(w, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			errorJSON(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), authContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole restricts a route subtree to one role. Mounted after
// authenticate, so claims are always present here.
func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := getClaimsFromContext(r.Context())
			if !ok {
				errorJSON(w, http.StatusUnauthorized, "missing auth claims")
				return
			}
			if claims.Role != role {
				errorJSON(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
