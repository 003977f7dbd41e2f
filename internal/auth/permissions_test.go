package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleViewer, PermBoardRead, true},
		{RoleViewer, PermCatalogRead, true},
		{RoleViewer, PermHistoryRead, true},
		{RoleViewer, PermBoardRescan, false},
		{RoleViewer, PermBoardSync, false},
		{RoleOperator, PermBoardRead, true},
		{RoleOperator, PermBoardRescan, true},
		{RoleOperator, PermBoardSync, true},
		{Role("guest"), PermBoardRead, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleViewer)
	if len(perms) != 3 {
		t.Fatalf("viewer permissions = %v, want 3 entries", perms)
	}

	// The returned slice is a copy.
	perms[0] = PermBoardSync
	if HasPermission(RoleViewer, PermBoardSync) {
		t.Error("mutating the returned slice changed the role model")
	}

	if PermissionsForRole(Role("guest")) != nil {
		t.Error("unknown role should have no permissions")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false", r)
		}
	}
	if IsValidRole("admin") {
		t.Error("IsValidRole(admin) = true")
	}
}
