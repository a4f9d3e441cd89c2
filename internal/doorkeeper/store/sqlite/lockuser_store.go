package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	dbpkg "github.com/rfidlock/doorkeeper/internal/db"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

type LockUserStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewLockUserStore(db *sql.DB, writer *dbpkg.Worker) *LockUserStore {
	return &LockUserStore{db: db, writer: writer}
}

const lockUserColumns = `lock_user_id, first_name, last_name, email, address, phone_number, birthdate, created_at_ms, updated_at_ms`

func scanLockUser(row interface{ Scan(...any) error }) (store.LockUserRecord, error) {
	var (
		u                store.LockUserRecord
		birth            sql.NullString
		created, updated int64
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Address, &u.PhoneNumber, &birth, &created, &updated)
	if err != nil {
		return store.LockUserRecord{}, err
	}
	u.Birthdate = datePtr(birth)
	u.CreatedAt = fromMs(created)
	u.UpdatedAt = fromMs(updated)
	return u, nil
}

func getLockUser(ctx context.Context, q queryer, id int64) (store.LockUserRecord, error) {
	u, err := scanLockUser(q.QueryRowContext(ctx, `SELECT `+lockUserColumns+` FROM lock_users WHERE lock_user_id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.LockUserRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.LockUserRecord{}, fmt.Errorf("GetLockUser %d: %w", id, err)
	}

	rows, err := q.QueryContext(ctx, `SELECT door_id FROM lock_user_doors WHERE lock_user_id = ? ORDER BY door_id;`, id)
	if err != nil {
		return store.LockUserRecord{}, fmt.Errorf("GetLockUser doors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return store.LockUserRecord{}, fmt.Errorf("GetLockUser doors scan: %w", err)
		}
		u.DoorIDs = append(u.DoorIDs, d)
	}
	return u, rows.Err()
}

func replaceUserDoors(ctx context.Context, tx *sql.Tx, userID int64, doorIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM lock_user_doors WHERE lock_user_id = ?;`, userID); err != nil {
		return fmt.Errorf("clear doors: %w", err)
	}
	for _, d := range doorIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO lock_user_doors(lock_user_id, door_id) VALUES (?, ?);`, userID, d)
		if isForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("add door %d: %w", d, err)
		}
	}
	return nil
}

func (s *LockUserStore) CreateLockUser(ctx context.Context, rec store.LockUserRecord) (store.LockUserRecord, error) {
	ms := toMs(rec.CreatedAt)

	var out store.LockUserRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO lock_users(
  first_name, last_name, email, address, phone_number, birthdate, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
			rec.FirstName, rec.LastName, rec.Email, rec.Address, rec.PhoneNumber,
			nullDate(rec.Birthdate), ms, ms)
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("CreateLockUser insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateLockUser id: %w", err)
		}
		if err := replaceUserDoors(ctx, tx, id, rec.DoorIDs); err != nil {
			return err
		}
		out, err = getLockUser(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *LockUserStore) UpdateLockUser(ctx context.Context, rec store.LockUserRecord) (store.LockUserRecord, error) {
	var out store.LockUserRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		out, err = updateLockUser(ctx, tx, rec)
		return err
	})
	return out, err
}

func updateLockUser(ctx context.Context, tx *sql.Tx, rec store.LockUserRecord) (store.LockUserRecord, error) {
	res, err := tx.ExecContext(ctx, `
UPDATE lock_users
SET first_name = ?, last_name = ?, email = ?, address = ?, phone_number = ?,
    birthdate = ?, updated_at_ms = ?
WHERE lock_user_id = ?;`,
		rec.FirstName, rec.LastName, rec.Email, rec.Address, rec.PhoneNumber,
		nullDate(rec.Birthdate), toMs(rec.UpdatedAt), rec.ID)
	if isUniqueViolation(err) {
		return store.LockUserRecord{}, store.ErrConflict
	}
	if err != nil {
		return store.LockUserRecord{}, fmt.Errorf("UpdateLockUser: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.LockUserRecord{}, store.ErrNotFound
	}
	if err := replaceUserDoors(ctx, tx, rec.ID, rec.DoorIDs); err != nil {
		return store.LockUserRecord{}, err
	}
	return getLockUser(ctx, tx, rec.ID)
}

// SaveLockUser runs the profile update, the scan assignment and the revoke
// in one writer transaction so a failed step rolls back the whole save.
func (s *LockUserStore) SaveLockUser(ctx context.Context, p store.SaveParams) (store.SaveResult, error) {
	var out store.SaveResult
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res := store.SaveResult{}

		u, err := updateLockUser(ctx, tx, p.User)
		if err != nil {
			return err
		}
		res.User = u

		if p.Assign != nil {
			k, prior, err := assignFromScan(ctx, tx, *p.Assign)
			if err != nil {
				return err
			}
			res.Issued = &k
			res.Replaced = prior
		}

		if p.RevokeActive {
			k, err := revokeActive(ctx, tx, p.User.ID, p.RevokerID, toMs(p.At))
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				return err
			default:
				res.Deactivated = &k
			}
		}

		out = res
		return nil
	})
	return out, err
}

func (s *LockUserStore) GetLockUser(ctx context.Context, id int64) (store.LockUserRecord, error) {
	return getLockUser(ctx, s.db, id)
}

func (s *LockUserStore) ListLockUsers(ctx context.Context, f store.LockUserFilter) ([]store.LockUserRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.DoorID != 0 {
		where = append(where, `EXISTS (SELECT 1 FROM lock_user_doors d WHERE d.lock_user_id = u.lock_user_id AND d.door_id = ?)`)
		args = append(args, f.DoorID)
	}
	if f.Active != nil {
		cond := `EXISTS (SELECT 1 FROM keycards k WHERE k.lock_user_id = u.lock_user_id AND k.revoked_at_ms IS NULL)`
		if !*f.Active {
			cond = "NOT " + cond
		}
		where = append(where, cond)
	}

	q := `SELECT ` + lockUserColumns + ` FROM lock_users u`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY u.lock_user_id;`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListLockUsers: %w", err)
	}
	var out []store.LockUserRecord
	for rows.Next() {
		u, err := scanLockUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("ListLockUsers scan: %w", err)
		}
		out = append(out, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	doors, err := s.doorsByUser(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].DoorIDs = doors[out[i].ID]
	}
	return out, nil
}

func (s *LockUserStore) doorsByUser(ctx context.Context) (map[int64][]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lock_user_id, door_id FROM lock_user_doors ORDER BY lock_user_id, door_id;`)
	if err != nil {
		return nil, fmt.Errorf("lock user doors: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var u, d int64
		if err := rows.Scan(&u, &d); err != nil {
			return nil, fmt.Errorf("lock user doors scan: %w", err)
		}
		out[u] = append(out[u], d)
	}
	return out, rows.Err()
}
