// Package sqlite3 provides a storage backend on a SQLite database.
package sqlite3

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/odvcencio/braid/pkg/storage"
	"github.com/odvcencio/braid/pkg/storage/sqlstore"
)

// Schema is the SQL that New executes.
// It creates the braid_entries table if it does not exist.
// (If it does exist, it must have the columns and constraints described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS braid_entries (
  path TEXT PRIMARY KEY NOT NULL,
  is_dir BOOLEAN NOT NULL,
  data BLOB
);
`

// New produces a backend using db for storage.
func New(ctx context.Context, db *sql.DB) (*sqlstore.Store, error) {
	return sqlstore.New(ctx, db, Schema)
}

// Open opens the SQLite database named by conn and wraps it.
func Open(ctx context.Context, conn string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite3", conn)
	if err != nil {
		return nil, errors.Wrap(err, "opening db")
	}
	return New(ctx, db)
}

func init() {
	storage.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (storage.Backend, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		return Open(ctx, conn)
	})
}
