package migrate

import (
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/stub"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newStubMigrate(t *testing.T) (*migrate.Migrate, database.Driver) {
	t.Helper()
	src, err := iofs.New(migrationsFS, "sql")
	require.NoError(t, err)
	drv, err := stub.WithInstance(nil, &stub.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithInstance(sourceName, src, "stub", drv)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, drv
}

func TestUp_ReportsVersions(t *testing.T) {
	m, _ := newStubMigrate(t)
	core, recorded := observer.New(zapcore.InfoLevel)

	require.NoError(t, up(m, zap.New(core)))
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	migrated := recorded.FilterMessage("schema migrated").All()
	require.Len(t, migrated, 1)
	fields := migrated[0].ContextMap()
	assert.Equal(t, uint64(0), fields["from"])
	assert.Equal(t, uint64(1), fields["to"])
	assert.Equal(t, sourceName, fields["source"])

	require.NoError(t, up(m, zap.New(core)))
	assert.Equal(t, 1, recorded.FilterMessage("schema up to date").Len())
}

func TestUp_RefusesDirtySchema(t *testing.T) {
	m, drv := newStubMigrate(t)
	require.NoError(t, drv.SetVersion(1, true))

	err := up(m, nil)
	require.ErrorContains(t, err, "dirty at version 1")
}
