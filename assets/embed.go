// assets/embed.go
//
// Files compiled into the binary.
//   - migrations/*.sql: schema for the results database, applied in
//     lexical order by database.Migrate.

package assets

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"
