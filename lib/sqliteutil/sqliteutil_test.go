package sqliteutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchema = `create table if not exists kv (
	key text primary key,
	value text not null
);`

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(ctx, Config{File: Memory}, testSchema)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "insert into kv(key, value) values ('a', 'b')")
	require.NoError(t, err)

	var value string
	err = db.QueryRowContext(ctx, "select value from kv where key = 'a'").Scan(&value)
	require.NoError(t, err)
	require.Equal(t, "b", value)
}

func TestOpenFileReappliesSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	db, err := OpenDB(ctx, Config{File: path}, testSchema)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "insert into kv(key, value) values ('a', 'b')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenDB(ctx, Config{File: path}, testSchema)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRowContext(ctx, "select count(*) from kv").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestOpenWithoutPath(t *testing.T) {
	_, err := OpenDB(context.Background(), Config{}, testSchema)
	require.Error(t, err)
}
