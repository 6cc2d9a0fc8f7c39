package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/solvieth/verslun-api/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// AnonHeader carries the guest identifier minted by the storefront for
// unauthenticated cart sessions.
const AnonHeader = "X-Anon-Id"

// TokenParser abstracts the JWT validator so tests can stub it.
type TokenParser interface {
	ParseToken(ctx context.Context, raw string) (string, error)
}

// Middleware wires caller identity into HTTP handlers.
type Middleware struct {
	Parser      TokenParser
	AdminEmails []string
}

// Authenticate attaches the principal to the context when a valid token
// or guest header is present. Requests without identity pass through
// anonymously.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil && !errors.Is(err, errNoToken) {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without a valid token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		if common.PrincipalFrom(ctx).Anonymous() {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects requests whose principal is not on the admin
// allowlist.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !common.PrincipalFrom(r.Context()).Admin {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	token := extractToken(r)
	if token == "" {
		if anon := strings.TrimSpace(r.Header.Get(AnonHeader)); anon != "" {
			return common.WithPrincipal(r.Context(), common.Principal{AnonID: anon}), nil
		}
		return r.Context(), errNoToken
	}
	if m.Parser == nil {
		return r.Context(), errors.New("auth: parser not configured")
	}
	email, err := m.Parser.ParseToken(r.Context(), token)
	if err != nil {
		return r.Context(), err
	}
	return common.WithPrincipal(r.Context(), common.Principal{
		Email: email,
		Admin: m.isAdmin(email),
	}), nil
}

func (m Middleware) isAdmin(email string) bool {
	for _, admin := range m.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(admin), email) {
			return true
		}
	}
	return false
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
