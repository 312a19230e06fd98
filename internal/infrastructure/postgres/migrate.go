package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log"
)

//go:embed schema.sql
var schema string

// Migrate applies the schema. Every statement is idempotent, so it is safe
// to run on each startup.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Println("Database schema is up to date")
	return nil
}
