package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/rfidlock/doorkeeper/internal/db"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

type DoorStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDoorStore(db *sql.DB, writer *dbpkg.Worker) *DoorStore {
	return &DoorStore{db: db, writer: writer}
}

const doorColumns = `door_id, name, description, last_seen_at_ms, created_at_ms, updated_at_ms`

func scanDoor(row interface{ Scan(...any) error }) (store.DoorRecord, error) {
	var (
		d               store.DoorRecord
		lastSeen        sql.NullInt64
		created, update int64
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &lastSeen, &created, &update); err != nil {
		return store.DoorRecord{}, err
	}
	d.LastSeenAt = msPtr(lastSeen)
	d.CreatedAt = fromMs(created)
	d.UpdatedAt = fromMs(update)
	return d, nil
}

func getDoor(ctx context.Context, q queryer, id int64) (store.DoorRecord, error) {
	d, err := scanDoor(q.QueryRowContext(ctx, `SELECT `+doorColumns+` FROM doors WHERE door_id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.DoorRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.DoorRecord{}, fmt.Errorf("GetDoor %d: %w", id, err)
	}
	return d, nil
}

func (s *DoorStore) CreateDoor(ctx context.Context, rec store.DoorRecord) (store.DoorRecord, error) {
	ms := toMs(rec.CreatedAt)

	var out store.DoorRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO doors(name, description, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?);`, rec.Name, rec.Description, ms, ms)
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("CreateDoor insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateDoor id: %w", err)
		}
		out, err = getDoor(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *DoorStore) UpdateDoor(ctx context.Context, rec store.DoorRecord) (store.DoorRecord, error) {
	ms := toMs(rec.UpdatedAt)

	var out store.DoorRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE doors
SET name = ?, description = ?, updated_at_ms = ?
WHERE door_id = ?;`, rec.Name, rec.Description, ms, rec.ID)
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("UpdateDoor: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		out, err = getDoor(ctx, tx, rec.ID)
		return err
	})
	return out, err
}

func (s *DoorStore) GetDoor(ctx context.Context, id int64) (store.DoorRecord, error) {
	return getDoor(ctx, s.db, id)
}

func (s *DoorStore) ListDoors(ctx context.Context) ([]store.DoorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+doorColumns+` FROM doors ORDER BY door_id;`)
	if err != nil {
		return nil, fmt.Errorf("ListDoors: %w", err)
	}
	defer rows.Close()

	var out []store.DoorRecord
	for rows.Next() {
		d, err := scanDoor(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDoors scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DoorStore) MarkDoorSeen(ctx context.Context, id int64, t time.Time) error {
	ms := toMs(t)
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE doors SET last_seen_at_ms = ? WHERE door_id = ?;`, ms, id)
		if err != nil {
			return fmt.Errorf("MarkDoorSeen: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *DoorStore) AllowedRFIDs(ctx context.Context, doorID int64) ([]string, error) {
	if _, err := getDoor(ctx, s.db, doorID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT k.rfid
FROM keycards k
JOIN lock_user_doors lud ON lud.lock_user_id = k.lock_user_id
WHERE lud.door_id = ? AND k.revoked_at_ms IS NULL
ORDER BY k.rfid;`, doorID)
	if err != nil {
		return nil, fmt.Errorf("AllowedRFIDs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var rfid string
		if err := rows.Scan(&rfid); err != nil {
			return nil, fmt.Errorf("AllowedRFIDs scan: %w", err)
		}
		out = append(out, rfid)
	}
	return out, rows.Err()
}
