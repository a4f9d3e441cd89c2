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

type KeycardStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewKeycardStore(db *sql.DB, writer *dbpkg.Worker) *KeycardStore {
	return &KeycardStore{db: db, writer: writer}
}

const keycardColumns = `keycard_id, rfid, lock_user_id, assigner_id, revoker_id, created_at_ms, revoked_at_ms`

func scanKeycard(row interface{ Scan(...any) error }) (store.KeycardRecord, error) {
	var (
		k                store.KeycardRecord
		revoker, revoked sql.NullInt64
		created          int64
	)
	if err := row.Scan(&k.ID, &k.RFID, &k.LockUserID, &k.AssignerID, &revoker, &created, &revoked); err != nil {
		return store.KeycardRecord{}, err
	}
	k.RevokerID = idPtr(revoker)
	k.CreatedAt = fromMs(created)
	k.RevokedAt = msPtr(revoked)
	return k, nil
}

func queryKeycard(ctx context.Context, q queryer, where string, args ...any) (store.KeycardRecord, error) {
	k, err := scanKeycard(q.QueryRowContext(ctx, `SELECT `+keycardColumns+` FROM keycards WHERE `+where+` LIMIT 1;`, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return store.KeycardRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.KeycardRecord{}, fmt.Errorf("query keycard: %w", err)
	}
	return k, nil
}

func (s *KeycardStore) ActiveKeycard(ctx context.Context, lockUserID int64) (store.KeycardRecord, error) {
	return queryKeycard(ctx, s.db, `lock_user_id = ? AND revoked_at_ms IS NULL`, lockUserID)
}

func (s *KeycardStore) FindActiveByRFID(ctx context.Context, rfid string) (store.KeycardRecord, error) {
	return queryKeycard(ctx, s.db, `rfid = ? AND revoked_at_ms IS NULL`, rfid)
}

func (s *KeycardStore) ListKeycards(ctx context.Context, lockUserID int64) ([]store.KeycardRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+keycardColumns+` FROM keycards WHERE lock_user_id = ? ORDER BY keycard_id DESC;`, lockUserID)
	if err != nil {
		return nil, fmt.Errorf("ListKeycards: %w", err)
	}
	defer rows.Close()

	var out []store.KeycardRecord
	for rows.Next() {
		k, err := scanKeycard(rows)
		if err != nil {
			return nil, fmt.Errorf("ListKeycards scan: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *KeycardStore) AssignFromScan(ctx context.Context, p store.AssignParams) (store.KeycardRecord, error) {
	var out store.KeycardRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		k, _, err := assignFromScan(ctx, tx, p)
		out = k
		return err
	})
	return out, err
}

// assignFromScan runs inside a writer job. It returns the new keycard and,
// when one was replaced, the revoked prior keycard.
func assignFromScan(ctx context.Context, tx *sql.Tx, p store.AssignParams) (store.KeycardRecord, *store.KeycardRecord, error) {
	atMs := toMs(p.At)

	scan, err := getScan(ctx, tx, p.ScanID)
	if err != nil {
		return store.KeycardRecord{}, nil, err
	}
	if scan.Status != store.ScanReady || scan.LockUserID != p.LockUserID {
		return store.KeycardRecord{}, nil, store.ErrScanNotReady
	}

	prior, err := queryKeycard(ctx, tx, `lock_user_id = ? AND revoked_at_ms IS NULL`, p.LockUserID)
	hasPrior := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.KeycardRecord{}, nil, err
	}
	if hasPrior && !p.RevokePrior {
		return store.KeycardRecord{}, nil, store.ErrKeycardActive
	}

	_, err = queryKeycard(ctx, tx, `rfid = ? AND revoked_at_ms IS NULL AND lock_user_id <> ?`, scan.RFID, p.LockUserID)
	if err == nil {
		return store.KeycardRecord{}, nil, store.ErrRFIDInUse
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.KeycardRecord{}, nil, err
	}

	var revoked *store.KeycardRecord
	if hasPrior {
		k, err := revokeKeycard(ctx, tx, prior.ID, p.RevokerID, atMs)
		if err != nil {
			return store.KeycardRecord{}, nil, fmt.Errorf("AssignFromScan revoke prior: %w", err)
		}
		revoked = &k
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE keycard_scans SET status = 'consumed', finished_at_ms = ? WHERE scan_id = ?;`,
		atMs, scan.ID); err != nil {
		return store.KeycardRecord{}, nil, fmt.Errorf("AssignFromScan consume scan: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO keycards(rfid, lock_user_id, assigner_id, created_at_ms)
VALUES (?, ?, ?, ?);`, scan.RFID, p.LockUserID, scan.AssignerID, atMs)
	if isUniqueViolation(err) {
		return store.KeycardRecord{}, nil, store.ErrRFIDInUse
	}
	if err != nil {
		return store.KeycardRecord{}, nil, fmt.Errorf("AssignFromScan insert keycard: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return store.KeycardRecord{}, nil, fmt.Errorf("AssignFromScan id: %w", err)
	}
	k, err := queryKeycard(ctx, tx, `keycard_id = ?`, id)
	return k, revoked, err
}

func (s *KeycardStore) RevokeActive(ctx context.Context, lockUserID, revokerID int64, at time.Time) (store.KeycardRecord, error) {
	var out store.KeycardRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		k, err := revokeActive(ctx, tx, lockUserID, revokerID, toMs(at))
		out = k
		return err
	})
	return out, err
}

func revokeActive(ctx context.Context, tx *sql.Tx, lockUserID, revokerID, atMs int64) (store.KeycardRecord, error) {
	k, err := queryKeycard(ctx, tx, `lock_user_id = ? AND revoked_at_ms IS NULL`, lockUserID)
	if err != nil {
		return store.KeycardRecord{}, err
	}
	return revokeKeycard(ctx, tx, k.ID, revokerID, atMs)
}

func revokeKeycard(ctx context.Context, tx *sql.Tx, keycardID, revokerID, atMs int64) (store.KeycardRecord, error) {
	if _, err := tx.ExecContext(ctx, `
UPDATE keycards SET revoked_at_ms = ?, revoker_id = ? WHERE keycard_id = ?;`,
		atMs, revokerID, keycardID); err != nil {
		return store.KeycardRecord{}, fmt.Errorf("revoke keycard %d: %w", keycardID, err)
	}
	return queryKeycard(ctx, tx, `keycard_id = ?`, keycardID)
}
