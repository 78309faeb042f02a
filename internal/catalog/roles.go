// internal/catalog/roles.go
//
// Application roles carried in the identity token's realm role list.

package catalog

// Role names as configured in the identity realm.
const (
	RoleAdmin  = "ADMIN"
	RoleClient = "CLIENT"
)

// AppRoles is the set of realm roles the client cares about; everything else
// in the token is ignored.
var AppRoles = []string{RoleAdmin, RoleClient}

// HasRole reports whether roles contains role.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether roles contains at least one of required.
func HasAnyRole(roles []string, required ...string) bool {
	for _, want := range required {
		if HasRole(roles, want) {
			return true
		}
	}
	return false
}

// FilterAppRoles keeps only the roles this application understands.
func FilterAppRoles(roles []string) []string {
	var filtered []string
	for _, r := range roles {
		if HasRole(AppRoles, r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
