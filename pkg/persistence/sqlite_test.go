package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelann95/localvault"
)

func openSQLite(t *testing.T, path string) *SQLRecordStore {
	t.Helper()

	db, err := sql.Open(string(SQLite), path)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	store := NewSQLRecordStore(db)
	require.NoError(t, store.Open(context.Background()))

	return store
}

func tempDBPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "vault.db")
}

func TestSQLite_InsertGetAll(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t, ":memory:")

	records, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	for i := byte(1); i <= 3; i++ {
		id, err := store.Insert(ctx, testEnvelope(i))
		require.NoError(t, err)
		assert.Equal(t, int64(i), id)
	}

	records, err = store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, r := range records {
		assert.Equal(t, int64(i+1), r.ID)
		assert.Equal(t, testEnvelope(byte(i+1)), r.Envelope)
	}
}

func TestSQLite_IDsNeverReused(t *testing.T) {
	ctx := context.Background()
	path := tempDBPath(t)
	store := openSQLite(t, path)

	for i := byte(1); i <= 3; i++ {
		_, err := store.Insert(ctx, testEnvelope(i))
		require.NoError(t, err)
	}

	// deleting the highest id is the case plain rowid tables get wrong
	require.NoError(t, store.Delete(ctx, 3))
	assert.ErrorIs(t, store.Delete(ctx, 3), localvault.ErrRecordNotFound)

	id, err := store.Insert(ctx, testEnvelope(4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)

	require.NoError(t, store.Delete(ctx, 4))
	require.NoError(t, store.Close())

	reopened := openSQLite(t, path)

	id, err = reopened.Insert(ctx, testEnvelope(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	records, err := reopened.GetAll(ctx)
	require.NoError(t, err)

	var ids []int64
	for _, r := range records {
		ids = append(ids, r.ID)
	}

	assert.Equal(t, []int64{1, 2, 5}, ids)
}

func TestSQLite_ConcurrentInsert(t *testing.T) {
	const n = 50

	ctx := context.Background()
	store := openSQLite(t, tempDBPath(t))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]bool, n)
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(b byte) {
			defer wg.Done()

			id, err := store.Insert(ctx, testEnvelope(b))
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			defer mu.Unlock()

			assert.False(t, ids[id], "duplicate id %d", id)
			ids[id] = true
		}(byte(i))
	}

	wg.Wait()

	assert.Len(t, ids, n)

	records, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, n)

	for i := 1; i < len(records); i++ {
		assert.Less(t, records[i-1].ID, records[i].ID)
	}
}

func TestSQLite_ReopenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := tempDBPath(t)

	store := openSQLite(t, path)

	_, err := store.Insert(ctx, testEnvelope(1))
	require.NoError(t, err)

	require.NoError(t, store.Open(ctx))
	require.NoError(t, store.Close())
	require.NoError(t, store.Open(ctx))

	other := openSQLite(t, path)

	version, err := other.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	records, err := other.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLite_CanceledContextKeepsStoreUsable(t *testing.T) {
	store := openSQLite(t, tempDBPath(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Insert(ctx, testEnvelope(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, localvault.ErrStorageUnavailable)

	_, err = store.GetAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	id, err := store.Insert(context.Background(), testEnvelope(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestSQLite_SeparateTables(t *testing.T) {
	ctx := context.Background()

	db, err := sql.Open(string(SQLite), tempDBPath(t))
	require.NoError(t, err)

	defer db.Close()

	vitals := NewSQLRecordStore(db, WithTableName("vitals"))
	notes := NewSQLRecordStore(db, WithTableName("notes"))

	require.NoError(t, vitals.Open(ctx))
	require.NoError(t, notes.Open(ctx))

	_, err = vitals.Insert(ctx, testEnvelope(1))
	require.NoError(t, err)

	records, err := notes.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// withMigrations swaps the package migrations for the duration of the test.
func withMigrations(t *testing.T, m []migration) {
	saved := migrations
	migrations = m

	t.Cleanup(func() { migrations = saved })
}

func TestSQLite_MigrationsRunInOrder(t *testing.T) {
	ctx := context.Background()
	path := tempDBPath(t)

	var applied []int

	step := func(version int, ddl string) migration {
		return migration{
			version:     version,
			description: fmt.Sprintf("step %d", version),
			statements: func(t DBType, table string) []string {
				applied = append(applied, version)

				return []string{fmt.Sprintf(ddl, table)}
			},
		}
	}

	v1 := migrations[0]
	v2 := step(2, "CREATE INDEX IF NOT EXISTS %[1]s_iv ON %[1]s (iv)")
	v3 := step(3, "CREATE TABLE IF NOT EXISTS %s_meta (k TEXT PRIMARY KEY, v TEXT)")

	// a store created at version 1
	withMigrations(t, []migration{v1})
	openSQLite(t, path)

	// upgrades run 2 then 3, and nothing on the next open
	withMigrations(t, []migration{v1, v2, v3})

	store := openSQLite(t, path)
	assert.Equal(t, []int{2, 3}, applied)

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	openSQLite(t, path)
	assert.Equal(t, []int{2, 3}, applied)

	// steps are safe to repeat against an upgraded table
	db, err := sql.Open(string(SQLite), path)
	require.NoError(t, err)

	defer db.Close()

	for _, m := range []migration{v1, v2, v3} {
		for _, stmt := range m.statements(SQLite, DefaultTableName) {
			_, err := db.ExecContext(ctx, stmt)
			assert.NoError(t, err, stmt)
		}
	}

	// an older library refuses the upgraded store
	withMigrations(t, []migration{v1})

	err = NewSQLRecordStore(db).Open(ctx)
	assert.ErrorIs(t, err, localvault.ErrUnsupportedSchema)
}
