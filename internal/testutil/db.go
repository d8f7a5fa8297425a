// Package testutil provides shared helpers for integration tests.
// Helpers skip automatically when TEST_DATABASE_URL is not set, so unit tests
// run without a database.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq" // registers "postgres" driver for database/sql
	"github.com/pressly/goose/v3"

	"dispatch/migrations"
)

// NewSQLDB opens a *sql.DB on TEST_DATABASE_URL with all migrations applied
// and every dispatch table emptied. The connection is closed when the test ends.
func NewSQLDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := requireDSN(t)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("testutil.NewSQLDB: open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("testutil.NewSQLDB: ping: %v", err)
	}
	if err := migrate(ctx, db); err != nil {
		t.Fatalf("testutil.NewSQLDB: migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE fares, trip_offers, trips`); err != nil {
		t.Fatalf("testutil.NewSQLDB: truncate: %v", err)
	}
	return db
}

func migrate(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// requireDSN returns TEST_DATABASE_URL, skipping the test if it is not set.
func requireDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	return dsn
}
