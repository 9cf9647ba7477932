// Package dbtest opens throwaway sqlite databases with the production schema.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveydesk/internal/db"
)

var seq atomic.Int64

// Open returns a migrated in-memory database that lives as long as the test.
// The pool holds a single connection, so callers must not query the pool while
// they keep a transaction open.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=1", name, seq.Add(1))

	conn, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.Migrate(context.Background(), conn))

	return conn
}

// Users seeds the given names and returns their ids in the same order.
func Users(t testing.TB, conn *sqlx.DB, names ...string) []int64 {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, db.SeedUsers(ctx, conn, names...))

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var id int64
		require.NoError(t, conn.GetContext(ctx, &id, conn.Rebind(`SELECT id FROM users WHERE username = ?`), name))
		ids = append(ids, id)
	}
	return ids
}
