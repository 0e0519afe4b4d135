// internal/storage/storage_test.go
package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	assert.Equal(t, DialectSQLite, store.Dialect())
	assert.Equal(t, "sqlite3", store.GoquDialect())
	assert.Equal(t, "", store.LockSuffix())
	require.NoError(t, store.Migrate(context.Background()))
	// Idempotent.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestRebindIsIdentityOnSQLite(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	assert.Equal(t, "SELECT ? , ?", store.Rebind("SELECT ? , ?"))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	boom := errors.New("boom")
	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO waitlist (id, id_elemento, estado, creado_en, actualizado_en)
			VALUES ('w1', 'c1', 'esperando', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, store.DB.GetContext(ctx, &count, `SELECT COUNT(1) FROM waitlist`))
	assert.Equal(t, 0, count)
}
