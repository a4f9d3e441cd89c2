package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Seed is the on-disk bootstrap file: doors, staff and lock users that
// should exist when the server starts. Applying a seed is idempotent; rows
// that already exist (by name, username or email) are left untouched.
type Seed struct {
	Doors     []SeedDoor     `yaml:"doors"`
	Staff     []SeedStaff    `yaml:"staff"`
	LockUsers []SeedLockUser `yaml:"lock_users"`
}

type SeedDoor struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type SeedStaff struct {
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Superuser bool     `yaml:"superuser"`
	Doors     []string `yaml:"doors"`
}

type SeedLockUser struct {
	FirstName   string   `yaml:"first_name"`
	LastName    string   `yaml:"last_name"`
	Email       string   `yaml:"email"`
	Address     string   `yaml:"address"`
	PhoneNumber string   `yaml:"phone_number"`
	Doors       []string `yaml:"doors"`
}

// LoadSeed reads and parses a YAML seed file.
func LoadSeed(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(b)
}

func ParseSeed(b []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	for i, d := range s.Doors {
		if strings.TrimSpace(d.Name) == "" {
			return Seed{}, fmt.Errorf("seed door %d: name is required", i)
		}
	}
	for i, st := range s.Staff {
		if strings.TrimSpace(st.Username) == "" || st.Password == "" {
			return Seed{}, fmt.Errorf("seed staff %d: username and password are required", i)
		}
	}
	for i, u := range s.LockUsers {
		if strings.TrimSpace(u.Email) == "" {
			return Seed{}, fmt.Errorf("seed lock user %d: email is required", i)
		}
	}
	return s, nil
}

// ApplySeed writes the seed in a single transaction.
func ApplySeed(ctx context.Context, db *sql.DB, s Seed) error {
	now := time.Now().UTC().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range s.Doors {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO doors(name, description, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?);`, strings.TrimSpace(d.Name), d.Description, now, now); err != nil {
			return fmt.Errorf("seed door %s: %w", d.Name, err)
		}
	}

	for _, st := range s.Staff {
		hash, err := bcrypt.GenerateFromPassword([]byte(st.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("seed staff %s hash: %w", st.Username, err)
		}
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO staff(username, password_hash, is_superuser, created_at_ms)
VALUES (?, ?, ?, ?);`, strings.TrimSpace(st.Username), string(hash), boolInt(st.Superuser), now)
		if err != nil {
			return fmt.Errorf("seed staff %s: %w", st.Username, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		staffID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("seed staff %s id: %w", st.Username, err)
		}
		for _, name := range st.Doors {
			doorID, err := doorIDByName(ctx, tx, name)
			if err != nil {
				return fmt.Errorf("seed staff %s: %w", st.Username, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO staff_doors(staff_id, door_id) VALUES (?, ?);`,
				staffID, doorID); err != nil {
				return fmt.Errorf("seed staff %s door %s: %w", st.Username, name, err)
			}
		}
	}

	for _, u := range s.LockUsers {
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO lock_users(
  first_name, last_name, email, address, phone_number, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);`,
			u.FirstName, u.LastName, strings.TrimSpace(u.Email), u.Address, u.PhoneNumber, now, now)
		if err != nil {
			return fmt.Errorf("seed lock user %s: %w", u.Email, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		userID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("seed lock user %s id: %w", u.Email, err)
		}
		for _, name := range u.Doors {
			doorID, err := doorIDByName(ctx, tx, name)
			if err != nil {
				return fmt.Errorf("seed lock user %s: %w", u.Email, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO lock_user_doors(lock_user_id, door_id) VALUES (?, ?);`,
				userID, doorID); err != nil {
				return fmt.Errorf("seed lock user %s door %s: %w", u.Email, name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}
	return nil
}

func doorIDByName(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT door_id FROM doors WHERE name = ?;`, strings.TrimSpace(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("unknown door %q", name)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup door %q: %w", name, err)
	}
	return id, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
