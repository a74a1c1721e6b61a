// Package middleware provides HTTP middleware for the DittoVFS API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/api/auth"
	"github.com/marmos91/dittovfs/pkg/vfs/acl"
)

// Context key type for storing claims
type contextKey string

const claimsContextKey contextKey = "claims"

// GetClaimsFromContext retrieves JWT claims from the request context.
// Returns nil if no claims are present (anonymous caller).
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// SubjectFromContext returns the ACL subject of the request. Requests
// without claims act as the anonymous subject.
func SubjectFromContext(ctx context.Context) acl.Subject {
	if claims := GetClaimsFromContext(ctx); claims != nil {
		return claims.Subject()
	}
	return acl.Subject{}
}

// extractBearerToken extracts the token from a Bearer Authorization header.
// Returns the token string and true if successful, or empty string and false if not.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	return parts[1], true
}

// Authenticate validates Bearer tokens in the Authorization header and stores
// the claims in the request context.
//
// A present but invalid token is always rejected with 401. A missing token
// is rejected unless allowAnonymous is set, in which case the request
// continues as the anonymous subject. A nil jwtService accepts no tokens.
func Authenticate(jwtService *auth.JWTService, allowAnonymous bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractBearerToken(r)
			if !ok {
				if !allowAnonymous {
					unauthorized(w, "Authorization header required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if jwtService == nil {
				unauthorized(w, "Token authentication is disabled")
				return
			}
			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				logger.DebugCtx(r.Context(), "Rejected bearer token", logger.Err(err))
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithPrincipal(claims.Username))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// unauthorized writes a minimal RFC 7807 problem. The handlers package
// depends on this one, so the helper cannot be shared.
func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="dittovfs"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"type":"about:blank","title":"Unauthorized","status":401,"detail":"` + detail + `"}` + "\n"))
}
