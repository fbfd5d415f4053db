package pg

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/odvcencio/braid/pkg/storage/sqlstore"
	"github.com/odvcencio/braid/pkg/storage/storagetest"
)

const connVar = "BRAID_PG_TESTING_CONN"

func TestStore(t *testing.T) {
	withStore(t, func(ctx context.Context, s *sqlstore.Store) {
		storagetest.Run(ctx, t, s)
	})
}

func withStore(t *testing.T, f func(context.Context, *sqlstore.Store)) {
	connstr := os.Getenv(connVar)
	if connstr == "" {
		t.Skipf("to run %s, set %s to a valid Postgresql connection string", t.Name(), connVar)
	}

	db, err := sql.Open("postgres", connstr)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS braid_entries`); err != nil {
		t.Fatal(err)
	}
	s, err := New(ctx, db)
	if err != nil {
		t.Fatal(err)
	}

	f(ctx, s)
}
