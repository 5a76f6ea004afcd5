package database

import (
	"context"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/stapelberg/postgrestest"
)

// SetupEphemeralPostgres starts a throwaway PostgreSQL server and creates a
// fresh database on it. The returned DSN is lib/pq compatible; the stop
// function tears the server down.
func SetupEphemeralPostgres() (string, func(), error) {
	Logger.Info("Starting ephemeral PostgreSQL server...")

	ctx := context.Background()

	// Uses a temporary directory by default for simplicity
	pgt, err := postgrestest.Start(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to start ephemeral postgres: %w", err)
	}

	dsn, err := pgt.CreateDatabase(ctx)
	if err != nil {
		pgt.Cleanup()
		return "", nil, fmt.Errorf("failed to create ephemeral database: %w", err)
	}

	Logger.Info("Created ephemeral database", "dsn", dsn)

	return dsn, pgt.Cleanup, nil
}
