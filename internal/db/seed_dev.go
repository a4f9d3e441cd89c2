package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Dev credentials created by SeedDev. Never seeded in prod.
const (
	DevSuperuser         = "superuser"
	DevSuperuserPassword = "superuser"
)

// SeedDev creates a starter door and the dev superuser if they are missing.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO doors(name, description, created_at_ms, updated_at_ms)
VALUES ('Main Door', 'Dev', ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed doors: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DevSuperuserPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed superuser hash: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO staff(username, password_hash, is_superuser, created_at_ms)
VALUES (?, ?, 1, ?);`, DevSuperuser, string(hash), now); err != nil {
		return fmt.Errorf("seed superuser: %w", err)
	}

	return nil
}
