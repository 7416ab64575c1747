// Package sqlite persists triggers and user memories in SQLite. It is the
// default store for single-host deployments; store/mongo is the drop-in
// alternative.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens the database file at path, creating the parent directory on
// first run. Callers run migrations before handing the DB to a store.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// builder returns a squirrel builder for SQLite. SQLite uses '?'
// placeholders, squirrel's default.
func builder() sq.StatementBuilderType {
	return sq.StatementBuilder
}
