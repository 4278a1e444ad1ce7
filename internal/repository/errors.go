// Package repository implements the credential store.  The sentinel values
// below are shared by every backend so that the service layer can translate
// them without knowing which database is in use.
package repository

import "errors"

// ErrNotFound is returned when no user matches the lookup.  For reset
// tokens this also covers tokens that exist but have expired.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert or update would violate the
// unique email constraint.
var ErrEmailExists = errors.New("email already exists")
