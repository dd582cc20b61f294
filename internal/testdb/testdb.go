// Package testdb starts a disposable Postgres for integration tests and
// applies the embedded migrations to it.
package testdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/migrations"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const image = "postgres:16-alpine"

// Start launches a Postgres container, migrates it and returns a pool sized
// maxOpen. The container and pool are torn down through t.Cleanup.
func Start(t testing.TB, maxOpen int) *database.Pool {
	t.Helper()

	ctx := context.Background()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Minute)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if _, err := migrations.Run(ctx, db, "up"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return database.NewPool(db)
}

// Reset empties every table so suites can share one container.
func Reset(t testing.TB, q database.Querier) {
	t.Helper()

	_, err := q.ExecContext(context.Background(), `
		TRUNCATE reviews, cart_entries, payments, order_line_items, orders,
		         products, categories, members
		RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("Failed to reset database: %v", err)
	}
}
