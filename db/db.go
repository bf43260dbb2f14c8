// Package db embeds the schema migrations shipped with the binary.
package db

import "embed"

// MigrationsFS holds the versioned schema migrations.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
