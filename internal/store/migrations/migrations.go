// Package migrations embeds the forward-only schema history of the local cache.
// Files are applied in version order by goose and recorded in goose_db_version.
package migrations

import "embed"

// Migrations holds every *.sql migration.
//
//go:embed *.sql
var Migrations embed.FS
