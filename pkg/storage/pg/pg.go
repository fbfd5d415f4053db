// Package pg provides a storage backend on a PostgreSQL database.
package pg

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq" // register the postgres type for sql.Open
	"github.com/pkg/errors"

	"github.com/odvcencio/braid/pkg/storage"
	"github.com/odvcencio/braid/pkg/storage/sqlstore"
)

// Schema is the SQL that New executes.
// It creates the braid_entries table if it does not exist.
// Paths use the "C" collation so that range scans follow byte order.
const Schema = `
CREATE TABLE IF NOT EXISTS braid_entries (
  path TEXT COLLATE "C" PRIMARY KEY NOT NULL,
  is_dir BOOLEAN NOT NULL,
  data BYTEA
);
`

// New produces a backend using db for storage.
func New(ctx context.Context, db *sql.DB) (*sqlstore.Store, error) {
	return sqlstore.New(ctx, db, Schema)
}

func init() {
	storage.Register("postgres", func(ctx context.Context, conf map[string]interface{}) (storage.Backend, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
