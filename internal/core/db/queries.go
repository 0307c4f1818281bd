package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Queries runs the named statements from queries/*.sql ("-- name: insert-run")
// against a database or an open transaction. Statements are written with ?
// placeholders and rebound for the connection's driver.
type Queries struct {
	dot *dotsql.DotSql
	db  sqlx.ExtContext
}

// LoadQueries parses the embedded query files.
func LoadQueries(db *sqlx.DB) (*Queries, error) {
	paths, err := fs.Glob(queriesFS, "queries/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list query files: %w", err)
	}
	sort.Strings(paths)

	var combined strings.Builder
	for _, path := range paths {
		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		combined.Write(content)
		combined.WriteString("\n")
	}

	dot, err := dotsql.LoadFromString(combined.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}
	return &Queries{dot: dot, db: db}, nil
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sqlx.Tx) *Queries {
	return &Queries{dot: q.dot, db: tx}
}

func (q *Queries) statement(name string) (string, error) {
	raw, err := q.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return q.db.Rebind(raw), nil
}

// Exec runs a named statement that returns no rows.
func (q *Queries) Exec(ctx context.Context, name string, args ...any) (sql.Result, error) {
	stmt, err := q.statement(name)
	if err != nil {
		return nil, err
	}
	return q.db.ExecContext(ctx, stmt, args...)
}

// Get scans a single row into dest.
func (q *Queries) Get(ctx context.Context, name string, dest any, args ...any) error {
	stmt, err := q.statement(name)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, q.db, dest, stmt, args...)
}

// Select scans every row into the slice dest.
func (q *Queries) Select(ctx context.Context, name string, dest any, args ...any) error {
	stmt, err := q.statement(name)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, q.db, dest, stmt, args...)
}
