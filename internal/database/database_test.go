package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"fixmystuff/internal/config"
	"fixmystuff/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, configurePool(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, maxOpenConns, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_SQLiteAutoMigrates(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBSQLitePath: filepath.Join(t.TempDir(), "fixmystuff.db"),
		DBSchemaMode: SchemaModeHybrid,
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model), "%T table should exist", model)
	}
	assert.NoError(t, Ping(context.Background(), db))

	user := models.User{Email: "a@example.com", Password: "x", Username: "alice"}
	require.NoError(t, db.Create(&user).Error)
	dup := models.User{Email: "a@example.com", Password: "x", Username: "alice2"}
	assert.Error(t, db.Create(&dup).Error, "email is unique")
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestPersistentModels(t *testing.T) {
	var names []string
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *models.User:
			names = append(names, "users")
		case *models.FixRequest:
			names = append(names, "fix_requests")
		case *models.Image:
			names = append(names, "images")
		case *models.ImageVariant:
			names = append(names, "image_variants")
		}
	}
	assert.Equal(t, []string{"users", "fix_requests", "images", "image_variants"}, names)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		runSQL  bool
		runAuto bool
		wantErr bool
	}{
		{"hybrid development", config.Config{Env: "development", DBSchemaMode: "hybrid"}, true, true, false},
		{"hybrid production", config.Config{Env: "production", DBSchemaMode: ""}, true, false, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto in production refused", config.Config{Env: "production", DBSchemaMode: "auto"}, false, false, true},
		{"auto in production allowed", config.Config{Env: "production", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"sqlite always auto", config.Config{Env: "production", DBDriver: "sqlite", DBSchemaMode: "hybrid"}, false, true, false},
		{"sqlite rejects sql mode", config.Config{DBDriver: "sqlite", DBSchemaMode: "sql"}, false, false, true},
		{"unknown mode", config.Config{DBSchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, runSQL)
			assert.Equal(t, tt.runAuto, runAuto)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.Len(t, all, 3)
	for i, m := range all {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpScript)
		assert.NotEmpty(t, m.DownScript)
	}
	assert.Equal(t, "000002_create_fix_requests", GetMigrationByVersion(2).String())
	assert.Nil(t, GetMigrationByVersion(99))
}

func TestLoadMigrations_Errors(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{
		"migrations/000001_init.up.sql": {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err, "missing down script")

	_, err = LoadMigrations(fstest.MapFS{
		"migrations/abc_init.up.sql":   {Data: []byte("SELECT 1;")},
		"migrations/abc_init.down.sql": {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err, "non-numeric version")
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))
	assert.ErrorContains(t, validateAppliedVersions([]int{1, 7}, registered), "000007")
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}
	pending := pendingMigrations([]int{1, 3}, registered)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
	assert.Len(t, pendingMigrations(nil, registered), 3)
}

func TestAppliedVersions_MissingLedgerIsEmpty(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{})
	require.NoError(t, err)

	versions, err := appliedVersions(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, versions)

	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	require.NoError(t, db.Create(&MigrationLog{Version: 2, Name: "b"}).Error)
	require.NoError(t, db.Create(&MigrationLog{Version: 1, Name: "a"}).Error)
	versions, err = appliedVersions(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
}

func TestPlan_SQLiteSkipsSQL(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	plan, err := Plan(context.Background(), db, &config.Config{DBDriver: "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, SchemaModeHybrid, plan.Mode)
	assert.False(t, plan.RunSQL)
	assert.True(t, plan.RunAuto)
	assert.Empty(t, plan.Pending)
}
