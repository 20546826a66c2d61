package migrations

import "embed"

// FS embeds the migration files. The SQL is kept portable so the same
// files run on SQLite and PostgreSQL.
//
//go:embed sql/*.sql
var FS embed.FS
