package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"breaksphere/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testMigrations = fstest.MapFS{
	"m/000001_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
	"m/000001_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
	"m/000002_gadgets.up.sql":   {Data: []byte("CREATE TABLE gadgets (id INTEGER PRIMARY KEY);")},
	"m/000002_gadgets.down.sql": {Data: []byte("DROP TABLE gadgets;")},
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func testMigrator(t *testing.T, db *gorm.DB) *Migrator {
	t.Helper()
	list, err := LoadMigrations(testMigrations, "m")
	require.NoError(t, err)
	return &Migrator{db: db, migrations: list}
}

func TestEmbeddedMigrationsRegistered(t *testing.T) {
	all := Migrations()
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "000001_feed_schema", all[0].String())
	assert.Contains(t, all[0].Up, "idx_posts_feed_order")
	assert.Contains(t, all[0].Down, "DROP TABLE IF EXISTS posts")
	assert.Len(t, all[0].Checksum(), 16)
}

func TestLoadMigrations_Rejects(t *testing.T) {
	tests := []struct {
		name string
		fs   fstest.MapFS
		want string
	}{
		{"bad name", fstest.MapFS{"m/1_init.up.sql": {Data: []byte("x")}}, "does not match"},
		{"missing down", fstest.MapFS{"m/000001_init.up.sql": {Data: []byte("x")}}, "needs both"},
		{"version clash", fstest.MapFS{
			"m/000001_a.up.sql":   {Data: []byte("x")},
			"m/000001_b.down.sql": {Data: []byte("x")},
		}, "used by"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fs, "m")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m := testMigrator(t, db)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, db.Migrator().HasTable("widgets"))
	assert.True(t, db.Migrator().HasTable("gadgets"))

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "widgets", applied[0].Name)
}

func TestMigrator_DownOnlyLatest(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m := testMigrator(t, db)
	_, err := m.Up(ctx)
	require.NoError(t, err)

	assert.ErrorContains(t, m.Down(ctx, 1), "not the latest")

	require.NoError(t, m.Down(ctx, 2))
	assert.False(t, db.Migrator().HasTable("gadgets"))

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestMigrator_DetectsLedgerDrift(t *testing.T) {
	ctx := context.Background()

	t.Run("edited script", func(t *testing.T) {
		db := openSQLite(t)
		m := testMigrator(t, db)
		_, err := m.Up(ctx)
		require.NoError(t, err)

		m.migrations[0].Up += "\n-- edited"
		_, err = m.Pending(ctx)
		assert.ErrorContains(t, err, "edited after it was applied")
	})

	t.Run("unknown version", func(t *testing.T) {
		db := openSQLite(t)
		m := testMigrator(t, db)
		_, err := m.Up(ctx)
		require.NoError(t, err)

		m.migrations = m.migrations[:1]
		_, err = m.Pending(ctx)
		assert.ErrorContains(t, err, "000002 unknown")
	})
}

func TestMigrator_FailedMigrationLeavesNoLedgerRow(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m := &Migrator{db: db, migrations: []Migration{{Version: 1, Name: "broken", Up: "CREATE TABLE (", Down: "SELECT 1"}}}

	_, err := m.Up(ctx)
	require.Error(t, err)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    SchemaPlan
		wantErr bool
	}{
		{"sqlite always auto", config.Config{DBDriver: "sqlite", Env: "production"}, SchemaPlan{Mode: "hybrid", AutoMigrate: true}, false},
		{"hybrid in development", config.Config{DBDriver: "postgres", Env: "development"}, SchemaPlan{Mode: "hybrid", RunSQL: true, AutoMigrate: true}, false},
		{"hybrid in production", config.Config{DBDriver: "postgres", Env: "production"}, SchemaPlan{Mode: "hybrid", RunSQL: true}, false},
		{"sql only", config.Config{DBDriver: "postgres", DBSchemaMode: "SQL"}, SchemaPlan{Mode: "sql", RunSQL: true}, false},
		{"auto refused in staging", config.Config{DBDriver: "postgres", Env: "staging", DBSchemaMode: "auto"}, SchemaPlan{}, true},
		{"unknown mode", config.Config{DBDriver: "postgres", DBSchemaMode: "yolo"}, SchemaPlan{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			plan, err := PlanSchema(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan)
		})
	}
}
