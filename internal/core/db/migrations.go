package db

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	schema "github.com/solatis/linewarden/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string     `db:"migration_id"`
	Checksum    string     `db:"checksum"`
	Applied     bool       `db:"-"`
	AppliedAt   *time.Time `db:"applied_at"`
	ExecutionMs int64      `db:"execution_ms"`
}

// migration is one embedded schema file.
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// trackingTable holds the per-driver DDL of the migrations table. It must
// match the migrations table in 001_initial_schema.sql.
var trackingTable = map[string]string{
	"sqlite3": `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL,
		execution_ms INTEGER NOT NULL
	)`,
	"postgres": `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
		execution_ms INTEGER NOT NULL
	)`,
}

// MigrateUp applies every pending embedded migration for the connection's
// driver, in file name order. Applied migrations whose checksum no longer
// matches the embedded file abort the run before anything is applied.
func MigrateUp(db *sqlx.DB) error {
	pending, applied, err := load(db)
	if err != nil {
		return err
	}

	known := make(map[string]string, len(pending))
	for _, m := range pending {
		known[m.ID] = m.Checksum
	}
	for id, s := range applied {
		want, ok := known[id]
		switch {
		case !ok:
			return fmt.Errorf("migration %s is recorded but no longer embedded", id)
		case want != s.Checksum:
			return fmt.Errorf("migration %s changed after it was applied (recorded %s, embedded %s)", id, s.Checksum, want)
		}
	}

	for _, m := range pending {
		if _, done := applied[m.ID]; done {
			continue
		}
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.ID, err)
		}
	}
	return nil
}

// MigrateStatus lists every embedded migration with its applied state.
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	embedded, applied, err := load(db)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(embedded))
	for _, m := range embedded {
		s, ok := applied[m.ID]
		if !ok {
			s = MigrationStatus{ID: m.ID, Checksum: m.Checksum}
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// load ensures the tracking table exists and returns the embedded
// migrations with the applied ones keyed by ID.
func load(db *sqlx.DB) ([]migration, map[string]MigrationStatus, error) {
	ddl, ok := trackingTable[db.DriverName()]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}
	if _, err := db.Exec(ddl); err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	fsys, err := schema.For(db.DriverName())
	if err != nil {
		return nil, nil, err
	}
	embedded, err := readMigrations(fsys)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var rows []MigrationStatus
	if err := db.Select(&rows, "SELECT migration_id, checksum, applied_at, execution_ms FROM migrations"); err != nil {
		return nil, nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[string]MigrationStatus, len(rows))
	for _, r := range rows {
		r.Applied = true
		applied[r.ID] = r
	}
	return embedded, applied, nil
}

// readMigrations reads *.sql from fsys in file name order. The checksum is
// the hex SHA-256 of the file.
func readMigrations(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sum := sha256.Sum256(content)
		out = append(out, migration{ID: name, Checksum: hex.EncodeToString(sum[:]), SQL: string(content)})
	}
	return out, nil
}

// apply runs one migration and records it in a single transaction.
func apply(db *sqlx.DB, m migration) error {
	start := time.Now()
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements(m.SQL) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	_, err = tx.Exec(
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		m.ID, m.Checksum, time.Now().UTC(), time.Since(start).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record: %w", err)
	}
	return tx.Commit()
}

// statements splits a schema file on semicolons after dropping comment
// lines. lib/pq rejects several statements in one Exec.
func statements(script string) []string {
	var body strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}

	var out []string
	for _, stmt := range strings.Split(body.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
