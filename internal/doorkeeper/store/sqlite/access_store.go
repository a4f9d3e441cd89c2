package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/rfidlock/doorkeeper/internal/db"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

type AccessStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessStore(db *sql.DB, writer *dbpkg.Worker) *AccessStore {
	return &AccessStore{db: db, writer: writer}
}

const accessColumns = `access_id, rfid, accessed_at_ms, lock_user_id, door_id, granted, reason, data_point`

const dayMs = int64(24 * time.Hour / time.Millisecond)

func scanAccess(row interface{ Scan(...any) error }) (store.AccessRecord, error) {
	var (
		a          store.AccessRecord
		accessedMs int64
		user, door sql.NullInt64
		granted    int
	)
	if err := row.Scan(&a.ID, &a.RFID, &accessedMs, &user, &door, &granted, &a.Reason, &a.DataPoint); err != nil {
		return store.AccessRecord{}, err
	}
	a.AccessedAt = fromMs(accessedMs)
	a.LockUserID = idPtr(user)
	a.DoorID = idPtr(door)
	a.Granted = granted == 1
	return a, nil
}

func (s *AccessStore) RecordAccess(ctx context.Context, rec store.AccessRecord) error {
	accessedMs := toMs(rec.AccessedAt)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_times(
  rfid, accessed_at_ms, lock_user_id, door_id, granted, reason, data_point
) VALUES (?, ?, ?, ?, ?, ?, ?);`,
			rec.RFID, accessedMs, nullID(rec.LockUserID), nullID(rec.DoorID),
			boolInt(rec.Granted), rec.Reason, rec.DataPoint,
		); err != nil {
			return fmt.Errorf("RecordAccess insert: %w", err)
		}
		return nil
	})
}

func (s *AccessStore) ListAccess(ctx context.Context, f store.AccessFilter) ([]store.AccessRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.LockUserID != 0 {
		where = append(where, "lock_user_id = ?")
		args = append(args, f.LockUserID)
	}
	if f.DoorID != 0 {
		where = append(where, "door_id = ?")
		args = append(args, f.DoorID)
	}

	q := `SELECT ` + accessColumns + ` FROM access_times`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY accessed_at_ms DESC, access_id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, fmt.Errorf("ListAccess: %w", err)
	}
	defer rows.Close()

	var out []store.AccessRecord
	for rows.Next() {
		a, err := scanAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccess scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AccessStore) LastAccess(ctx context.Context, lockUserID int64) (store.AccessRecord, error) {
	a, err := scanAccess(s.db.QueryRowContext(ctx, `
SELECT `+accessColumns+` FROM access_times
WHERE lock_user_id = ? AND granted = 1
ORDER BY accessed_at_ms DESC, access_id DESC
LIMIT 1;`, lockUserID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.AccessRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.AccessRecord{}, fmt.Errorf("LastAccess: %w", err)
	}
	return a, nil
}

// VisitCounts buckets by integer division of the epoch-millisecond
// timestamp, which yields UTC days.
func (s *AccessStore) VisitCounts(ctx context.Context, since time.Time) ([]store.VisitCount, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT accessed_at_ms / ? AS day, COUNT(*)
FROM access_times
WHERE granted = 1 AND accessed_at_ms >= ?
GROUP BY day
ORDER BY day;`, dayMs, since.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("VisitCounts: %w", err)
	}
	defer rows.Close()

	var out []store.VisitCount
	for rows.Next() {
		var day int64
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("VisitCounts scan: %w", err)
		}
		out = append(out, store.VisitCount{Day: fromMs(day * dayMs), Count: n})
	}
	return out, rows.Err()
}
