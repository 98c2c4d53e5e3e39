// Package directory resolves the users, groups and spending limit the
// ledger depends on but does not own.
package directory

import "errors"

// ErrLimitExists is returned when a second spending limit is created.
var ErrLimitExists = errors.New("spending limit already exists")

// ErrLimitNotFound is returned when removing a limit that does not exist.
var ErrLimitNotFound = errors.New("spending limit not found")
