// Package policy decides route and system access for a user snapshot.
// It is deterministic and never touches the network: the same user and
// key always produce the same answer within one session snapshot.
package policy

import (
	"github.com/mmhmddd/omega-gateway/internal/model"
)

// Routes the secretariat role may reach, regardless of per-user grants.
var secretariatRoutes = map[string]struct{}{
	"userForms":        {},
	"secretariat-user": {},
}

// HasRouteAccess reports whether user may navigate to routeKey.
// super_admin and admin pass for every key, including keys that do not
// exist yet. employee consults only its own routeAccess set.
func HasRouteAccess(user *model.User, routeKey string) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case model.RoleSuperAdmin, model.RoleAdmin:
		return true
	case model.RoleSecretariat:
		_, ok := secretariatRoutes[routeKey]
		return ok
	case model.RoleEmployee:
		for _, key := range user.RouteAccess {
			if key == routeKey {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// HasSystemAccess reports whether user may use the named subsystem.
// Only super_admin bypasses the per-user systemAccess map.
func HasSystemAccess(user *model.User, systemKey string) bool {
	if user == nil {
		return false
	}
	if user.Role == model.RoleSuperAdmin {
		return true
	}
	return user.SystemAccess[systemKey]
}

// RoleAllowed reports whether the user's role is in the given list.
func RoleAllowed(user *model.User, roles ...model.Role) bool {
	if user == nil {
		return false
	}
	for _, role := range roles {
		if user.Role == role {
			return true
		}
	}
	return false
}
