package repository

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the PostGIS extension, the specialists table and its spatial index
// when they do not exist yet.
func EnsureSchema(ctx context.Context, db Database) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure specialists schema: %w", err)
	}

	return nil
}
