// Package auth guards the API with a static bearer token or HS256 JWTs.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/saturnRangs/ObservingSatellites/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled   bool
	Token     string // static operator token; empty disables it
	JWTSecret string // HS256 secret; empty disables JWTs
}

// Roles carried in JWTs. The static token acts as RoleOperator.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

// exemptPaths are always public regardless of auth configuration.
var exemptPaths = map[string]bool{
	"/":                    true,
	"/index.html":          true,
	"/app.js":              true,
	"/styles.css":          true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
}

// operatorPaths need RoleOperator for any non-GET method.
var operatorPaths = map[string]bool{
	"/api/v1/tle/fetch": true,
}

// isExempt returns true if the path is exempt from auth.
func isExempt(path string) bool {
	return exemptPaths[path]
}

func needsOperator(r *http.Request) bool {
	return operatorPaths[r.URL.Path] && r.Method != http.MethodGet
}

type ctxKey struct{}

// ClaimsFromContext returns the claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// Middleware returns an HTTP middleware that enforces Bearer auth on
// non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	secret := []byte(cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == "" || token == header {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, ok := authenticate(cfg, secret, token)
			if !ok {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if needsOperator(r) && claims.Role != RoleOperator {
				httputil.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
		})
	}
}

func authenticate(cfg Config, secret []byte, token string) (*Claims, bool) {
	if cfg.Token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) == 1 {
		return &Claims{Role: RoleOperator}, true
	}
	if len(secret) > 0 {
		if claims, err := ParseJWT(token, secret); err == nil {
			return claims, true
		}
	}
	return nil, false
}
