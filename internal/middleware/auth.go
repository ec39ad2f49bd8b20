package middleware

import (
	"context"
	"net/http"

	"autodealers-backend/internal/auth"
	"autodealers-backend/internal/models"
	"autodealers-backend/internal/transport"
)

const (
	AccessCookie  = "ad_access"
	RefreshCookie = "ad_refresh"
)

type claimsKey struct{}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if v := ctx.Value(claimsKey{}); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}

// IsPlatformAdmin reports whether the request was authenticated as the
// platform operator, either via the static admin key or a platform_admin
// token. Entitlement checks are bypassed for these requests.
func IsPlatformAdmin(ctx context.Context) bool {
	c := ClaimsFromContext(ctx)
	return c != nil && c.Role == models.RolePlatformAdmin
}

// PlatformAdmin protects routes reserved to the platform operator.
func PlatformAdmin(adminKey string, manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" && manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
				return
			}

			if adminKey != "" && r.Header.Get("X-Admin-Key") == adminKey {
				ctx := context.WithValue(r.Context(), claimsKey{}, &auth.Claims{Role: models.RolePlatformAdmin})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if manager != nil {
				cookie, err := r.Cookie(AccessCookie)
				if err == nil && cookie.Value != "" {
					claims, err := manager.Parse(cookie.Value)
					if err == nil && claims.Role == models.RolePlatformAdmin {
						ctx := context.WithValue(r.Context(), claimsKey{}, claims)
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					}
				}
			}

			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		})
	}
}

// TenantAuth protects tenant dashboard routes. Any authenticated tenant role
// passes; requests carrying the admin key or a platform_admin token pass too
// and are marked so downstream entitlement checks can skip themselves.
func TenantAuth(adminKey string, manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" && r.Header.Get("X-Admin-Key") == adminKey {
				ctx := context.WithValue(r.Context(), claimsKey{}, &auth.Claims{Role: models.RolePlatformAdmin})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
				return
			}

			cookie, err := r.Cookie(AccessCookie)
			if err != nil || cookie.Value == "" {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			claims, err := manager.Parse(cookie.Value)
			if err != nil || !models.IsValidRole(claims.Role) {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if claims.Role != models.RolePlatformAdmin && claims.TenantID == "" {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantID resolves the tenant scope of a request: tenants are fixed to
// their own claim, the platform admin may select any tenant via query param.
func TenantID(r *http.Request) string {
	c := ClaimsFromContext(r.Context())
	if c == nil {
		return ""
	}
	if c.Role == models.RolePlatformAdmin {
		return r.URL.Query().Get("tenantId")
	}
	return c.TenantID
}
