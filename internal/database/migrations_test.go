package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationsOrdersByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_usage.sql", "001_init.sql", "README.md", "010_more.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}

	got, err := ListMigrations(dir)
	require.NoError(t, err)

	var versions []string
	for _, m := range got {
		versions = append(versions, m.Version)
	}
	assert.Equal(t, []string{"001_init.sql", "002_usage.sql", "010_more.sql"}, versions)
}

func TestListMigrationsShipped(t *testing.T) {
	got, err := ListMigrations(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "001_init.sql", got[0].Version)
}
