package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/orderapp/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "OMS_POSTGRES_DSN"
)

var errMissingDSN = errors.New("OMS_POSTGRES_DSN (or -dsn) is required")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	direction := fs.String("direction", "up", "migration direction: up|down|status")
	steps := fs.Int("steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	dsnFlag := fs.String("dsn", "", "PostgreSQL DSN (fallback: OMS_POSTGRES_DSN)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := strings.ToLower(strings.TrimSpace(*direction))
	switch dir {
	case "up", "down", "status":
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", *direction)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	dsn := resolveDSN(*dsnFlag)
	if dsn == "" {
		return errMissingDSN
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch dir {
	case "up":
		if err := store.MigrateUp(ctx, *steps); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		return printStatus(ctx, out, store, "migrate up ok")
	case "down":
		if err := store.MigrateDown(ctx, *steps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		return printStatus(ctx, out, store, "migrate down ok")
	default:
		if err := printStatus(ctx, out, store, "migration status"); err != nil {
			return err
		}
		applied, err := store.AppliedMigrations(ctx)
		if err != nil {
			return fmt.Errorf("list applied migrations: %w", err)
		}
		writeApplied(out, applied)
		return nil
	}
}

// resolveDSN берёт DSN из флага, иначе из окружения (включая .env).
func resolveDSN(flagValue string) string {
	if dsn := strings.TrimSpace(flagValue); dsn != "" {
		return dsn
	}
	v := viper.New()
	v.AutomaticEnv()
	return strings.TrimSpace(v.GetString(envPostgresDSN))
}

func printStatus(ctx context.Context, w io.Writer, store *postgres.Store, prefix string) error {
	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	_, _ = fmt.Fprintf(w, "%s: version=%d applied=%d\n", prefix, version, count)
	return nil
}

func writeApplied(w io.Writer, applied []postgres.AppliedMigration) {
	for _, m := range applied {
		_, _ = fmt.Fprintf(w, "  %04d %-24s %s\n", m.Version, m.Name, m.AppliedAt.UTC().Format(time.RFC3339))
	}
}
