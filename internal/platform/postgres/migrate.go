package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"lightning-tournament-backend/internal/common/logger"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the embedded schema. Statements are idempotent
// (IF NOT EXISTS) and forward-only; destructive changes require a new
// statement, never an edit of an existing one.
func (c *Client) Migrate(ctx context.Context) error {
	return MigrateDB(ctx, c.db)
}

// MigrateDB applies the embedded schema to an already opened connection.
func MigrateDB(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info().Msg("Database schema up to date")
	return nil
}
