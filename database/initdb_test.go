package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/opecstate/internal/testutil"
)

func setupTestDB(t *testing.T, opts ...Option) (*Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "states.db")
	d := openTestDB(t, "sqlite:///"+path, opts...)
	return d, path
}

func openTestDB(t *testing.T, target string, opts ...Option) *Database {
	t.Helper()
	opts = append([]Option{
		WithRegistry(testRegistry(t)),
		WithLogger(testutil.NewTestLogger(t)),
	}, opts...)
	d := Open(target, opts...)
	t.Cleanup(func() { d.Close() })
	return d
}

func tableSQL(t *testing.T, d *Database, table string) string {
	t.Helper()
	var ddl string
	err := d.GetDB().Get(&ddl, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	require.NoError(t, err)
	return ddl
}

func countRows(t *testing.T, d *Database, table string) int {
	t.Helper()
	var n int
	require.NoError(t, d.GetDB().Get(&n, `SELECT COUNT(*) FROM "`+table+`"`))
	return n
}

func TestInitDB_FreshTarget(t *testing.T) {
	ctx := context.Background()
	d, path := setupTestDB(t)

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "Open must not touch the file")

	require.NoError(t, d.InitDB(ctx))

	tables, err := d.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"state", "user"}, tables)

	var columns []string
	require.NoError(t, d.GetDB().Select(&columns, `SELECT name FROM pragma_table_info('state') ORDER BY cid`))
	assert.Equal(t, []string{"id", "value"}, columns)

	columns = nil
	require.NoError(t, d.GetDB().Select(&columns, `SELECT name FROM pragma_table_info('user') ORDER BY cid`))
	assert.Equal(t, []string{"id", "name"}, columns)

	assert.Equal(t, 0, countRows(t, d, "state"))
	assert.Equal(t, 0, countRows(t, d, "user"))
	assert.True(t, d.Ensured("state"))
	assert.True(t, d.Ensured("user"))
	assert.False(t, d.Ensured("plot"))
}

func TestInitDB_Idempotent(t *testing.T) {
	ctx := context.Background()
	d, path := setupTestDB(t)
	require.NoError(t, d.InitDB(ctx))

	before := tableSQL(t, d, "state")
	_, err := d.GetDB().Exec(`INSERT INTO state (value) VALUES (?)`, `{"zoom":3}`)
	require.NoError(t, err)

	require.NoError(t, d.InitDB(ctx))
	assert.Equal(t, before, tableSQL(t, d, "state"))
	assert.Equal(t, 1, countRows(t, d, "state"))

	// A second handle on the same file sees the tables as already there.
	other := openTestDB(t, "sqlite:///"+path)
	require.NoError(t, other.InitDB(ctx))
	assert.Equal(t, before, tableSQL(t, other, "state"))
	assert.Equal(t, 1, countRows(t, other, "state"))
}

func TestInitDB_CompatibleTableKept(t *testing.T) {
	ctx := context.Background()
	d, _ := setupTestDB(t)

	_, err := d.GetDB().Exec(`CREATE TABLE state (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		value text NOT NULL,
		saved_at TIMESTAMP
	)`)
	require.NoError(t, err)
	before := tableSQL(t, d, "state")

	require.NoError(t, d.InitDB(ctx))

	assert.Equal(t, before, tableSQL(t, d, "state"))
	tables, err := d.Tables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "user")
}

func TestInitDB_CompatibleTableKept_DifferentCase(t *testing.T) {
	ctx := context.Background()
	d, _ := setupTestDB(t)

	// SQLite table names are case-insensitive: "State" is the state table.
	_, err := d.GetDB().Exec(`CREATE TABLE "State" (id INTEGER PRIMARY KEY AUTOINCREMENT, value TEXT NOT NULL)`)
	require.NoError(t, err)
	before := tableSQL(t, d, "State")

	require.NoError(t, d.InitDB(ctx))

	assert.Equal(t, before, tableSQL(t, d, "State"))
	assert.True(t, d.Ensured("state"))
	tables, err := d.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"State", "user"}, tables)
}

func TestInitDB_SchemaConflict(t *testing.T) {
	tests := []struct {
		name       string
		existing   string
		wantTable  string
		wantColumn string
		wantReason string
		wantTables []string
	}{
		{
			name:       "type mismatch",
			existing:   `CREATE TABLE state (id INTEGER PRIMARY KEY, value BLOB)`,
			wantTable:  "state",
			wantColumn: "value",
			wantReason: "declared type BLOB, model wants TEXT",
			wantTables: []string{"state"},
		},
		{
			name:       "missing column",
			existing:   `CREATE TABLE "user" (id INTEGER PRIMARY KEY)`,
			wantTable:  "user",
			wantColumn: "name",
			wantReason: "column is missing",
			wantTables: []string{"user"},
		},
		{
			name:       "primary key mismatch",
			existing:   `CREATE TABLE state (id INTEGER, value TEXT NOT NULL)`,
			wantTable:  "state",
			wantColumn: "id",
			wantReason: "primary key mismatch",
			wantTables: []string{"state"},
		},
		{
			name:       "extra required column",
			existing:   `CREATE TABLE state (id INTEGER PRIMARY KEY, value TEXT NOT NULL, owner TEXT NOT NULL)`,
			wantTable:  "state",
			wantColumn: "owner",
			wantReason: "NOT NULL column without default",
			wantTables: []string{"state"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d, _ := setupTestDB(t)
			_, err := d.GetDB().Exec(tt.existing)
			require.NoError(t, err)
			before := tableSQL(t, d, tt.wantTable)

			err = d.InitDB(ctx)
			var conflict *SchemaConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, tt.wantTable, conflict.Table)
			assert.Equal(t, tt.wantColumn, conflict.Column)
			assert.Contains(t, conflict.Reason, tt.wantReason)

			// Nothing else is created and the existing table is untouched.
			tables, err := d.Tables(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTables, tables)
			assert.Equal(t, before, tableSQL(t, d, tt.wantTable))
			assert.False(t, d.Ensured("state"))
			assert.False(t, d.Ensured("user"))
		})
	}
}

func TestInitDB_UnregisteredModel(t *testing.T) {
	d, path := setupTestDB(t, WithRequiredModels("state", "user", "plot"))

	err := d.InitDB(context.Background())
	var resolution *ResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, "plot", resolution.Name)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInitDB_UnwritableTarget(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	d := openTestDB(t, "sqlite:///"+filepath.Join(dir, "states.db"))

	err := d.InitDB(context.Background())
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "begin init", pe.Op)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInitDB_MalformedTarget(t *testing.T) {
	d := openTestDB(t, "postgresql://localhost/states")
	require.NotNil(t, d)
	assert.Equal(t, Target{}, d.Target())
	assert.Equal(t, "postgresql://localhost/states", d.RawTarget())

	err := d.InitDB(context.Background())
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "postgresql://localhost/states", pe.Target)
	assert.Contains(t, err.Error(), "unsupported dialect")

	_, err = d.Tables(context.Background())
	assert.ErrorAs(t, err, &pe)
}

func TestInitDB_ModerncDriver(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "states.db")
	d := openTestDB(t, "sqlite+modernc:///"+path)
	assert.Equal(t, DriverModernc, d.Target().Driver)

	require.NoError(t, d.InitDB(ctx))
	require.NoError(t, d.InitDB(ctx))

	tables, err := d.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"state", "user"}, tables)

	// The file written by one driver is readable by the other.
	mattn := openTestDB(t, "sqlite:///"+path)
	require.NoError(t, mattn.InitDB(ctx))
}

func TestInitDB_MemoryTarget(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t, "sqlite://")
	assert.True(t, d.Target().Memory)

	require.NoError(t, d.InitDB(ctx))
	tables, err := d.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"state", "user"}, tables)
}

func TestInitDB_Concurrent(t *testing.T) {
	ctx := context.Background()
	d, _ := setupTestDB(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = d.InitDB(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	tables, err := d.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"state", "user"}, tables)
}

func TestInitDB_AfterClose(t *testing.T) {
	d, _ := setupTestDB(t)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	err := d.InitDB(context.Background())
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "database is closed")
}
