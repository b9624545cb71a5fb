package dbtest

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/obrasplan/contracts-service/internal/db"
)

// New returns a migrated in-memory sqlite database with foreign keys
// enforced. A single connection keeps every query on the same memory database.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), db.Options(zerolog.Nop(), "test"))
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.Migrate(database))
	return database
}
