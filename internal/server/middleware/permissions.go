package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	// PermRecompute allows queueing a graph rebuild.
	PermRecompute = "graph.recompute"
	// PermArtifactDownload allows fetching the serialized graph artifact.
	PermArtifactDownload = "graph.artifact:download"
)

var allPermissions = []string{PermRecompute, PermArtifactDownload}

// IsAdmin reports whether user carries the admin role. Admins pass every
// permission guard regardless of their permission claims.
func IsAdmin(user *AppUser) bool {
	return user != nil && user.Role == "admin"
}

func HasPermission(user *AppUser, permission string) bool {
	if user == nil {
		return false
	}
	return IsAdmin(user) || slices.Contains(user.Permissions, permission)
}

func HasAnyPermission(user *AppUser, permissions ...string) bool {
	return slices.ContainsFunc(permissions, func(p string) bool {
		return HasPermission(user, p)
	})
}

func requireUser(allowed func(*AppUser) bool, missing string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			if !allowed(user) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: missing permission " + missing})
			}
			return next(c)
		}
	}
}

func RequirePermission(permission string) echo.MiddlewareFunc {
	return requireUser(func(u *AppUser) bool {
		return HasPermission(u, permission)
	}, permission)
}

// RequireAnyPermission passes users holding at least one of permissions.
func RequireAnyPermission(permissions ...string) echo.MiddlewareFunc {
	return requireUser(func(u *AppUser) bool {
		return HasAnyPermission(u, permissions...)
	}, strings.Join(permissions, " or "))
}
