package store

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/note89/sitehooks/pkg/schema"
)

func TestMigrations_RecordsNames(t *testing.T) {
	s := newTestStore(t)

	applied, err := s.Migrations(context.Background())
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, 1, applied[0].Version)
	assert.Equal(t, "dispatch_log", applied[0].Name)
	assert.False(t, applied[0].AppliedAt.IsZero())
}

func TestMigrations_AppliesOnlyNewVersions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scripts, err := loadMigrations(migrationFS)
	require.NoError(t, err)
	scripts = append(scripts, migration{
		Version: 2,
		Name:    "dispatch_notes",
		SQL:     "-- free-form notes\nCREATE TABLE notes (id TEXT PRIMARY KEY);",
	})
	require.NoError(t, applyMigrations(ctx, s.db, scripts))
	require.NoError(t, applyMigrations(ctx, s.db, scripts))

	applied, err := s.Migrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "dispatch_notes", applied[1].Name)
}

func TestMigrations_NameMismatchRefused(t *testing.T) {
	s := newTestStore(t)

	err := applyMigrations(context.Background(), s.db, []migration{{Version: 1, Name: "other", SQL: "SELECT 1"}})
	require.Error(t, err)
	siteErr, ok := err.(*schema.SiteError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeStore, siteErr.Code)
	assert.Contains(t, err.Error(), `"dispatch_log"`)
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql": {Data: []byte("SELECT 10;")},
		"migrations/002_first.sql": {Data: []byte("SELECT 2;")},
	}
	got, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Version)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, 10, got[1].Version)
}

func TestLoadMigrations_BadNames(t *testing.T) {
	for name, file := range map[string]string{
		"no name":    "migrations/003.sql",
		"no version": "migrations/abc_things.sql",
		"zero":       "migrations/000_zero.sql",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := loadMigrations(fstest.MapFS{file: {Data: []byte("SELECT 1;")}})
			assert.Error(t, err)
		})
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/1_b.sql":   {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "used twice")
}

func TestStatements(t *testing.T) {
	script := "-- header\nCREATE TABLE a (x INTEGER);\n\n  -- note\nCREATE INDEX i ON a(x);\n;"
	assert.Equal(t, []string{
		"CREATE TABLE a (x INTEGER)",
		"CREATE INDEX i ON a(x)",
	}, statements(script))
}
