package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"comfygate/internal/models"
)

// Action is one of the operations the role table grants.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// rolePermissions is the fixed role→action table. Viewers are read-only;
// editors and admins get the full set. Ownership is enforced separately
// inside the resource store, so no role grants access to another user's
// resources.
var rolePermissions = map[models.UserRole]map[Action]struct{}{
	models.UserRoleViewer: permissionSet(ActionRead),
	models.UserRoleEditor: permissionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
	models.UserRoleAdmin:  permissionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
}

func permissionSet(actions ...Action) map[Action]struct{} {
	set := make(map[Action]struct{}, len(actions))
	for _, action := range actions {
		set[action] = struct{}{}
	}
	return set
}

// RoleAllows reports whether the role table grants the action. The second
// return value distinguishes an unrecognized role from a denied action.
func RoleAllows(role models.UserRole, action Action) (allowed, known bool) {
	actions, ok := rolePermissions[role]
	if !ok {
		return false, false
	}
	_, allowed = actions[action]
	return allowed, true
}

// RequirePermission gates a route on the role table. A request with no
// authenticated role is a 401; an unrecognized or insufficient role is a
// 403.
func RequirePermission(action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || user.Role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_role"})
			return
		}

		allowed, known := RoleAllows(user.Role, action)
		if !known {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown_role"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}

// RequireRoles gates a route on membership in an explicit role list, used
// for the admin surface.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if _, ok := roleSet[user.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
