// Package repository implements the credential store over MySQL. The
// sentinel errors below let higher layers distinguish failure modes without
// inspecting driver errors: ErrEmailExists and ErrGoogleIDExists surface
// unique-index violations, ErrNotFound replaces sql.ErrNoRows at the package
// boundary.
package repository

import "errors"

// ErrEmailExists is returned when an insert or update collides with the
// unique email index. Concurrent registrations racing on the same email are
// serialized by that index; the loser receives this error.
var ErrEmailExists = errors.New("email already exists")

// ErrGoogleIDExists is returned when a Google identity is already linked to
// a different record.
var ErrGoogleIDExists = errors.New("google id already linked")

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("user not found")
