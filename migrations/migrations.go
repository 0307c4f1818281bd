// Package migrations embeds the run history schema, one directory per
// database driver.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// For returns the migration files for a database/sql driver name.
func For(driver string) (fs.FS, error) {
	switch driver {
	case "sqlite3":
		return fs.Sub(files, "sqlite")
	case "postgres":
		return fs.Sub(files, "postgres")
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
