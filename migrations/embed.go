// Package migrations embeds the SQL schema so the binary can migrate its
// database without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/boardsync-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.SetMigrations(migrationsFS, ".")
}
