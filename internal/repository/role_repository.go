package repository

import (
	"context"
	"database/sql"
)

// RoleRepo answers role-membership questions through the user_roles
// relation table.  There is no caching layer, so every admin-gated request
// costs one query.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// HasRole reports whether the user is joined to a role with the given name.
func (r *RoleRepo) HasRole(ctx context.Context, userID, name string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_roles ur JOIN roles ro ON ro.id=ur.role_id WHERE ur.user_id=? AND ro.name=?",
		userID, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
