package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "portfolio.db"),
		Name: "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNew_CreatesDatabase(t *testing.T) {
	db := newTestDB(t)

	assert.Equal(t, "portfolio", db.Name())
	assert.NotNil(t, db.Conn())
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	// All three tables should exist
	for _, table := range []string{"portfolios", "assets", "transactions"} {
		var name string
		err := db.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_ForeignKeysEnforced(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	_, err := db.Conn().Exec(
		`INSERT INTO assets (id, portfolio_id, symbol, name, quantity, purchase_price, purchase_date, asset_type)
		 VALUES ('a1', 'missing-portfolio', 'AAPL', 'Apple', 1, 100, CURRENT_TIMESTAMP, 'stock')`,
	)
	assert.Error(t, err)
}
