package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// envTestDSN задаёт базу для интеграционных тестов; без неё тесты пропускаются.
const envTestDSN = "OMS_POSTGRES_TEST_DSN"

// openPostgresStoreForIntegrationTest возвращает store с актуальной схемой и пустыми таблицами.
func openPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	if _, err := store.DB().ExecContext(ctx, `
		TRUNCATE TABLE
			idempotency_keys,
			outbox_messages,
			timeline_events,
			order_items,
			orders,
			products,
			customers
		RESTART IDENTITY CASCADE
	`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return store
}

// openRawPostgresStoreForIntegrationTest открывает подключение без миграций.
func openRawPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv(envTestDSN))
	if dsn == "" {
		t.Skipf("%s is not set, skipping postgres integration test", envTestDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
