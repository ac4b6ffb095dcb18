package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_UpDownWalk(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// с чистого листа, независимо от того, что оставили другие тесты
	require.NoError(t, store.MigrateDown(ctx, 100))

	steps := []struct {
		name        string
		apply       func() error
		wantVersion int64
	}{
		{"up all", func() error { return store.MigrateUp(ctx, 0) }, 4},
		{"up again is a no-op", func() error { return store.MigrateUp(ctx, 0) }, 4},
		{"down two", func() error { return store.MigrateDown(ctx, 2) }, 2},
		{"up one", func() error { return store.MigrateUp(ctx, 1) }, 3},
		{"down default step", func() error { return store.MigrateDown(ctx, 0) }, 2},
		{"down rest", func() error { return store.MigrateDown(ctx, 5) }, 0},
		{"down on empty schema", func() error { return store.MigrateDown(ctx, 1) }, 0},
	}
	for _, step := range steps {
		require.NoError(t, step.apply(), step.name)

		version, count, err := store.MigrationStatus(ctx)
		require.NoError(t, err, step.name)
		assert.Equal(t, step.wantVersion, version, step.name)
		assert.Equal(t, int(step.wantVersion), count, step.name)
	}

	require.NoError(t, store.MigrateUp(ctx, 1))
	applied, err := store.AppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "catalog", applied[0].Name)
	assert.False(t, applied[0].AppliedAt.IsZero())
}

func TestMigrator_NilStoreAndUnknownDirection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var nilStore *Store
	assert.Error(t, nilStore.MigrateUp(ctx, 0))
	assert.Error(t, nilStore.MigrateDown(ctx, 1))
	_, _, err := nilStore.MigrationStatus(ctx)
	assert.Error(t, err)

	store := openRawPostgresStoreForIntegrationTest(t)
	assert.Error(t, store.migrate(ctx, migrationDirection("sideways"), 0))
}
