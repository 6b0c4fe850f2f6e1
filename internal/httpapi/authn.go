package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Routes that never require a bearer token.
var publicPaths = []string{
	"/v1/session/login",
	"/v1/session/refresh",
	"/v1/session/logout",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth validates the bearer token on every protected route and
// attaches the resulting identity to the context. Every validation
// failure, whatever its internal kind, answers with the same generic 401.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r)
			return
		}

		identity, err := a.sessions.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnavailable) {
				writeError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
				return
			}
			unauthorized(w, r)
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// unauthorized is the single external shape of every authentication
// failure: no reason, no hint whether the account or token ever existed.
func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="trusted-file-link"`)
	writeError(w, r, http.StatusUnauthorized, "authentication required")
}

// forbidden is the single external shape of every authorization denial.
func forbidden(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusForbidden, "forbidden")
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
