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

type ScanStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewScanStore(db *sql.DB, writer *dbpkg.Worker) *ScanStore {
	return &ScanStore{db: db, writer: writer}
}

const scanColumns = `scan_id, lock_user_id, assigner_id, status, rfid, door_id, started_at_ms, finished_at_ms`

func scanScan(row interface{ Scan(...any) error }) (store.ScanRecord, error) {
	var (
		sc       store.ScanRecord
		status   string
		door     sql.NullInt64
		started  int64
		finished sql.NullInt64
	)
	if err := row.Scan(&sc.ID, &sc.LockUserID, &sc.AssignerID, &status, &sc.RFID, &door, &started, &finished); err != nil {
		return store.ScanRecord{}, err
	}
	sc.Status = store.ScanStatus(status)
	sc.DoorID = idPtr(door)
	sc.StartedAt = fromMs(started)
	sc.FinishedAt = msPtr(finished)
	return sc, nil
}

func getScan(ctx context.Context, q queryer, id int64) (store.ScanRecord, error) {
	sc, err := scanScan(q.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM keycard_scans WHERE scan_id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.ScanRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.ScanRecord{}, fmt.Errorf("GetScan %d: %w", id, err)
	}
	return sc, nil
}

func (s *ScanStore) CreateScan(ctx context.Context, rec store.ScanRecord) (store.ScanRecord, error) {
	if rec.Status == "" {
		rec.Status = store.ScanWaiting
	}
	startedMs := toMs(rec.StartedAt)

	var out store.ScanRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO keycard_scans(lock_user_id, assigner_id, status, rfid, started_at_ms)
VALUES (?, ?, ?, ?, ?);`, rec.LockUserID, rec.AssignerID, string(rec.Status), rec.RFID, startedMs)
		if isForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("CreateScan insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateScan id: %w", err)
		}
		out, err = getScan(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *ScanStore) GetScan(ctx context.Context, id int64) (store.ScanRecord, error) {
	return getScan(ctx, s.db, id)
}

func (s *ScanStore) LatestWaiting(ctx context.Context) (store.ScanRecord, error) {
	sc, err := scanScan(s.db.QueryRowContext(ctx, `
SELECT `+scanColumns+` FROM keycard_scans
WHERE status = 'waiting'
ORDER BY scan_id DESC
LIMIT 1;`))
	if errors.Is(err, sql.ErrNoRows) {
		return store.ScanRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.ScanRecord{}, fmt.Errorf("LatestWaiting: %w", err)
	}
	return sc, nil
}

func (s *ScanStore) MarkScanReady(ctx context.Context, id int64, rfid string, doorID int64) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// door_id resolves to NULL when the reporting door is unknown.
		res, err := tx.ExecContext(ctx, `
UPDATE keycard_scans
SET status = 'ready',
    rfid = ?,
    door_id = (SELECT door_id FROM doors WHERE door_id = ?)
WHERE scan_id = ? AND status = 'waiting';`, rfid, doorID, id)
		if err != nil {
			return fmt.Errorf("MarkScanReady: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		if _, err := getScan(ctx, tx, id); err != nil {
			return err
		}
		return store.ErrScanNotReady
	})
}

func (s *ScanStore) MarkScanExpired(ctx context.Context, id int64, at time.Time) error {
	atMs := toMs(at)
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := getScan(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE keycard_scans
SET status = 'expired', finished_at_ms = ?
WHERE scan_id = ? AND status IN ('waiting', 'ready');`, atMs, id); err != nil {
			return fmt.Errorf("MarkScanExpired: %w", err)
		}
		return nil
	})
}

func (s *ScanStore) ExpireStartedBefore(ctx context.Context, status store.ScanStatus, cutoff, at time.Time) (int64, error) {
	if status.Finished() {
		return 0, nil
	}
	cutoffMs := cutoff.UTC().UnixMilli()
	atMs := toMs(at)

	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE keycard_scans
SET status = 'expired', finished_at_ms = ?
WHERE status = ? AND started_at_ms < ?;`, atMs, string(status), cutoffMs)
		if err != nil {
			return fmt.Errorf("ExpireStartedBefore: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

// PruneFinishedBefore uses idx_keycard_scans_status to find finished rows.
func (s *ScanStore) PruneFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM keycard_scans
WHERE status IN ('consumed', 'expired') AND finished_at_ms < ?;`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneFinishedBefore: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}
