package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := loadMigrations(migrationFiles)
	require.NoError(t, err)
	require.Len(t, migrations, 4)

	names := make([]string, 0, len(migrations))
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.SQL)
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"create_users", "create_ticket_types", "create_orders", "create_free_ticket_claims"}, names)
}

func TestLoadMigrations_OrderingAndFiltering(t *testing.T) {
	files := fstest.MapFS{
		"migrations/010_later.sql":  {Data: []byte("SELECT 10;")},
		"migrations/002_second.sql": {Data: []byte("SELECT 2;")},
		"migrations/README.md":      {Data: []byte("notes")},
		"migrations/noversion.sql":  {Data: []byte("SELECT 0;")},
		"migrations/abc_bad.sql":    {Data: []byte("SELECT 0;")},
	}

	migrations, err := loadMigrations(files)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, "second", migrations[0].Name)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/01_b.sql":  {Data: []byte("SELECT 1;")},
	}

	_, err := loadMigrations(files)
	assert.Error(t, err)
}

func TestConfig_DSN(t *testing.T) {
	assert.Equal(t, "postgres://u@h/db", Config{URL: "postgres://u@h/db"}.DSN())
	assert.Equal(t,
		"host=localhost port=5432 user=app password=pw dbname=tickets sslmode=disable",
		Config{Host: "localhost", Port: 5432, User: "app", Password: "pw", DBName: "tickets", SSLMode: "disable"}.DSN())
}
