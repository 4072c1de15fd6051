// Package liveset carries assets embedded into the binary.
package liveset

import "embed"

// MigrationsFS holds the SQLite schema migrations for the local state store.
//
//go:embed migrations
var MigrationsFS embed.FS
