package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolOptions_WithDefaults(t *testing.T) {
	got := PoolOptions{MaxOpenConns: 3, ConnMaxIdleTime: time.Second}.withDefaults()
	def := DefaultPoolOptions()

	assert.Equal(t, 3, got.MaxOpenConns)
	assert.Equal(t, def.MaxIdleConns, got.MaxIdleConns)
	assert.Equal(t, def.ConnMaxLifetime, got.ConnMaxLifetime)
	assert.Equal(t, time.Second, got.ConnMaxIdleTime)
}

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse postgres dsn")
}

func TestStore_NilSafe(t *testing.T) {
	var s *Store
	assert.ErrorIs(t, s.Ping(context.Background()), errStoreNotInitialized)
	assert.NoError(t, s.Close())
}
