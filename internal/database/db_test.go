package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"root:pw@tcp(db:3306)/devcamper?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		DSN("root", "pw", "db", "3306", "devcamper"))
	assert.Equal(t,
		"root@tcp(db:3306)/devcamper?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		DSN("root", "", "db", "3306", "devcamper"))
}

func TestMigrationsAreEmbeddedInPairs(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))

	body, err := fs.ReadFile(migrationsFS, "migrations/000001_create_users.up.sql")
	require.NoError(t, err)
	for _, col := range []string{"email", "password_hash", "reset_password_token", "reset_password_expire"} {
		assert.Contains(t, string(body), col)
	}
}
