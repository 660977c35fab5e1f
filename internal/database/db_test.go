package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	standard := buildConnectionString("/tmp/a.db", ProfileStandard)
	assert.Contains(t, standard, "/tmp/a.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, standard, "synchronous(NORMAL)")

	cache := buildConnectionString("file:x?mode=memory", ProfileCache)
	assert.Contains(t, cache, "file:x?mode=memory&_pragma=journal_mode(WAL)")
	assert.Contains(t, cache, "synchronous(OFF)")
}

func TestMigrate(t *testing.T) {
	history := newDB(t, HistoryDB, ProfileStandard)
	require.NoError(t, history.Migrate())
	require.NoError(t, history.Migrate(), "schemas must be idempotent")

	var n int
	require.NoError(t, history.Conn().QueryRow("SELECT COUNT(*) FROM daily_prices").Scan(&n))
	assert.Zero(t, n)

	cache := newDB(t, CacheDB, ProfileCache)
	require.NoError(t, cache.Migrate())
	require.NoError(t, cache.Conn().QueryRow("SELECT COUNT(*) FROM xray_runs").Scan(&n))
	assert.Equal(t, ProfileCache, cache.Profile())

	other := newDB(t, "scratch", "")
	assert.NoError(t, other.Migrate())
	assert.Equal(t, ProfileStandard, other.Profile())
}

func TestWithTransaction(t *testing.T) {
	db := newDB(t, HistoryDB, ProfileStandard)
	require.NoError(t, db.Migrate())

	insert := func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO daily_prices (ticker, date, adjusted_close, updated_at) VALUES ('AAA', 1, 10.0, 1)")
		return err
	}
	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM daily_prices").Scan(&n))
		return n
	}

	sentinel := errors.New("abort")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insert(tx))
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 0, count())

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insert(tx))
		panic("boom")
	})
	assert.ErrorContains(t, err, "panic in transaction")
	assert.Equal(t, 0, count())

	require.NoError(t, WithTransaction(db.Conn(), insert))
	assert.Equal(t, 1, count())

	assert.Error(t, WithTransaction(nil, insert))
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newDB(t, CacheDB, ProfileCache)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, CacheDB, stats.Name)
	assert.Positive(t, stats.PageCount)
	assert.Positive(t, stats.PageSize)
}

func TestWALCheckpoint(t *testing.T) {
	db := newDB(t, HistoryDB, ProfileStandard)
	require.NoError(t, db.Migrate())

	for _, mode := range []string{"", "passive", "FULL", "TRUNCATE"} {
		status, err := db.WALCheckpoint(mode)
		require.NoError(t, err, mode)
		assert.Zero(t, status.Busy, mode)
	}

	_, err := db.WALCheckpoint("NOW")
	assert.Error(t, err)
}
