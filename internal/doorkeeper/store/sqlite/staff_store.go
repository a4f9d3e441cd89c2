package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dbpkg "github.com/rfidlock/doorkeeper/internal/db"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

type StaffStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewStaffStore(db *sql.DB, writer *dbpkg.Worker) *StaffStore {
	return &StaffStore{db: db, writer: writer}
}

func getStaff(ctx context.Context, q queryer, where string, arg any) (store.StaffRecord, error) {
	var (
		st      store.StaffRecord
		super   int
		created int64
	)
	err := q.QueryRowContext(ctx, `
SELECT staff_id, username, password_hash, is_superuser, created_at_ms
FROM staff WHERE `+where+`;`, arg).Scan(&st.ID, &st.Username, &st.PasswordHash, &super, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.StaffRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.StaffRecord{}, fmt.Errorf("get staff: %w", err)
	}
	st.IsSuperuser = super == 1
	st.CreatedAt = fromMs(created)

	rows, err := q.QueryContext(ctx, `SELECT door_id FROM staff_doors WHERE staff_id = ? ORDER BY door_id;`, st.ID)
	if err != nil {
		return store.StaffRecord{}, fmt.Errorf("get staff doors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return store.StaffRecord{}, fmt.Errorf("get staff doors scan: %w", err)
		}
		st.ManagedDoorIDs = append(st.ManagedDoorIDs, d)
	}
	return st, rows.Err()
}

func (s *StaffStore) CreateStaff(ctx context.Context, rec store.StaffRecord) (store.StaffRecord, error) {
	createdMs := toMs(rec.CreatedAt)

	var out store.StaffRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO staff(username, password_hash, is_superuser, created_at_ms)
VALUES (?, ?, ?, ?);`, rec.Username, rec.PasswordHash, boolInt(rec.IsSuperuser), createdMs)
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("CreateStaff insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateStaff id: %w", err)
		}
		for _, d := range rec.ManagedDoorIDs {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO staff_doors(staff_id, door_id) VALUES (?, ?);`, id, d)
			if isForeignKeyViolation(err) {
				return store.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("CreateStaff door %d: %w", d, err)
			}
		}
		out, err = getStaff(ctx, tx, "staff_id = ?", id)
		return err
	})
	return out, err
}

func (s *StaffStore) GetStaff(ctx context.Context, id int64) (store.StaffRecord, error) {
	return getStaff(ctx, s.db, "staff_id = ?", id)
}

func (s *StaffStore) GetStaffByUsername(ctx context.Context, username string) (store.StaffRecord, error) {
	return getStaff(ctx, s.db, "username = ?", username)
}
