package auth

import (
	"net/http"
	"strings"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/tenant"
)

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Service *Service
}

// Authenticate attaches the user to the context when a valid token is
// present; anonymous requests pass through untouched.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.claimsFrom(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUser(r.Context(), claims.UserID, claims.Role)))
	})
}

// RequireAuth rejects requests without a valid token for the current org.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.claimsFrom(r)
		if err != nil {
			common.RenderError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUser(r.Context(), claims.UserID, claims.Role)))
	})
}

// RequireRole gates a subtree to the given roles; it assumes RequireAuth
// ran first.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := common.Role(r.Context())
			if !ok {
				common.RenderError(w, common.ErrUnauthorized("authentication required"))
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			common.RenderError(w, common.ErrForbidden("insufficient role"))
		})
	}
}

func (m Middleware) claimsFrom(r *http.Request) (Claims, error) {
	token := bearerToken(r)
	if token == "" {
		return Claims{}, common.ErrUnauthorized("missing or invalid token")
	}
	claims, err := m.Service.ParseAccessToken(token)
	if err != nil {
		return Claims{}, err
	}
	// Tokens are bound to the org they were issued for.
	if org, ok := tenant.From(r.Context()); ok && claims.Org != org {
		return Claims{}, common.ErrUnauthorized("token issued for another organization")
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
