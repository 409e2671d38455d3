package auth

import (
	"fmt"
	"net/http"

	"vehicle_vault/vault/schema"

	"gorm.io/gorm"
)

// PrincipalFromRequest loads the authenticated user, including its
// share target allow-list, from the user id claim. Access is re-derived
// from the database on every call; only the hierarchy resolver's TTL
// cache sits between a mutation and its effect.
func PrincipalFromRequest(r *http.Request, db *gorm.DB) (schema.User, error) {
	userId, err := UserIdFromContext(r)
	if err != nil {
		return schema.User{}, err
	}

	return schema.GetUser(userId, db, true)
}

func RootAdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return roleGuard(db, func(user schema.User) bool {
		return user.Role == schema.RoleRootAdmin
	}, "root admin")
}

func OrgAdminOrAbove(db *gorm.DB) func(http.Handler) http.Handler {
	return roleGuard(db, func(user schema.User) bool {
		return user.Role == schema.RoleRootAdmin || user.Role == schema.RoleOrgAdmin
	}, "org admin")
}

func AdminOrAbove(db *gorm.DB) func(http.Handler) http.Handler {
	return roleGuard(db, func(user schema.User) bool {
		return !schema.IsSubordinateRole(user.Role)
	}, "admin")
}

func roleGuard(db *gorm.DB, allowed func(schema.User) bool, minRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := PrincipalFromRequest(r, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			if !allowed(user) {
				http.Error(w, fmt.Sprintf("user %v must be %v or above to access endpoint", user.Id, minRole), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
