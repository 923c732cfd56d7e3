package testutil

import (
	"fmt"
	"testing"

	"firecontest-backend/config"
	"firecontest-backend/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
// A single connection keeps the in-memory database alive and serializes
// writers the way row locks would on PostgreSQL.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := database.OpenWith(sqlite.Open(dsn))
	require.NoError(t, err)

	require.NoError(t, database.ConfigurePool(db, config.DatabaseConfig{MaxOpenConns: 1}))

	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
