// Package repository implements persistence for users, roles and the
// refresh-token ledger on top of database/sql.  Sentinel errors defined
// here let handlers translate storage failures into stable HTTP statuses
// without inspecting driver-specific error values.
package repository

import "errors"

// ErrEmailExists is returned when an insert collides with the unique email
// constraint.  Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a lookup matches no row.  Handlers translate
// this into HTTP 404.
var ErrNotFound = errors.New("not found")
