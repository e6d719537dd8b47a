// Package httpapi exposes a small chi-routed status/health surface over a
// running stream: thin handlers closing over their dependencies rather
// than a framework DI container.
package httpapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ILLUVRSE/streamkit/internal/config"
	"github.com/ILLUVRSE/streamkit/internal/engine/runtime"
)

// StatusProvider is the subset of runtime.Stream the HTTP surface needs;
// kept as an interface so it is independent of the stream's element type.
type StatusProvider interface {
	Name() string
	GetStatus() runtime.Status
	GetBranches() []string
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RegisterRoutes mounts /health and /streams/status on r.
func RegisterRoutes(r chi.Router, stream StatusProvider) {
	r.Get("/health", handleHealth)
	r.Get("/streams/status", handleStatus(stream))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStatus(stream StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if stream == nil {
			http.Error(w, "no stream configured", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"name":     stream.Name(),
			"status":   stream.GetStatus(),
			"branches": stream.GetBranches(),
		})
	}
}

// NewAuthMiddleware builds a bearer-JWT middleware, validated against
// cfg.JWTIssuer/JWTAudience with an HMAC secret supplied by the caller.
// If cfg.RequireAuth is false, the middleware passes every request
// through unchecked.
func NewAuthMiddleware(cfg *config.Config, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.RequireAuth {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid claims", http.StatusUnauthorized)
				return
			}
			if iss, err := claims.GetIssuer(); cfg.JWTIssuer != "" && (err != nil || iss != cfg.JWTIssuer) {
				http.Error(w, "unexpected issuer", http.StatusUnauthorized)
				return
			}
			if aud, err := claims.GetAudience(); cfg.JWTAudience != "" && (err != nil || !slices.Contains(aud, cfg.JWTAudience)) {
				http.Error(w, "unexpected audience", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
