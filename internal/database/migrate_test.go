package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_UpNeverDrops(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	for _, name := range ups {
		b, err := migrationsFS.ReadFile(name)
		require.NoError(t, err)
		assert.NotContains(t, strings.ToUpper(string(b)), "DROP ", name)
	}
}

func TestMigrations_Paired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	for _, name := range ups {
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		_, err := fs.Stat(migrationsFS, down)
		assert.NoError(t, err, "missing %s", down)
	}
}
