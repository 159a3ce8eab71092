package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
	"github.com/tothemoon-studio/vocal-api/pkg/response"
)

// Policy declares who may pass a route guard. Roles lists the permitted
// roles; AdminOnly restricts the route to admin accounts regardless of role.
// Admins satisfy every policy.
type Policy struct {
	Roles     []models.UserRole
	AdminOnly bool
}

// Require enforces an access policy against the authenticated claims.
func Require(policy Policy) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(policy.Roles))
	for _, role := range policy.Roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if claims.IsAdmin {
			c.Next()
			return
		}
		if policy.AdminOnly {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin access required"))
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles guards a route with a plain role list.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return Require(Policy{Roles: roles})
}

// RequireAdmin guards a route for admin accounts only.
func RequireAdmin() gin.HandlerFunc {
	return Require(Policy{AdminOnly: true})
}
