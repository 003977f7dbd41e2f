package auth

// Permission is a named capability checked by the API.
type Permission string

// Permission constants.
const (
	PermBoardRead   Permission = "board:read"
	PermBoardRescan Permission = "board:rescan"
	PermBoardSync   Permission = "board:sync"
	PermCatalogRead Permission = "catalog:read"
	PermHistoryRead Permission = "history:read"
)

// rolePermissions is the whole authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermBoardRead,
		PermCatalogRead,
		PermHistoryRead,
	},
	RoleOperator: {
		PermBoardRead,
		PermCatalogRead,
		PermHistoryRead,
		PermBoardRescan,
		PermBoardSync,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to role,
// or nil for an unknown role.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	return append([]Permission(nil), perms...)
}
