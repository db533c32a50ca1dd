package auth

import (
	"encoding/json"
	"net/http"

	"example.com/fitness/internal/domain"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// Middleware rejects requests made while no session is authenticated.
type Middleware struct {
	Sessions domain.SessionSource
	Skipper  Skipper
}

// NewMiddleware constructs a middleware with optional skipper.
func NewMiddleware(sessions domain.SessionSource, skipper Skipper) Middleware {
	return Middleware{Sessions: sessions, Skipper: skipper}
}

// PublicPaths skips the endpoints that must work while logged out.
func PublicPaths(paths ...string) Skipper {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.URL.Path]
		return ok
	}
}

// Wrap wraps an http.Handler with the session check.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		p, ok := m.Sessions.Principal()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"type":   "unauthorized",
				"detail": "not logged in; visit /login",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
