package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	t.Parallel()

	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.Replace(up, ".up.sql", ".down.sql", 1)
		_, err := fs.Stat(migrationsFS, down)
		assert.NoError(t, err, "migration %s has no matching down migration", up)
	}
}

func TestMigrationsSourceLoads(t *testing.T) {
	t.Parallel()

	d := migrationsFromSource()
	first, err := d.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}
