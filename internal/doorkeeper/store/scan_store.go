package store

import (
	"context"
	"time"
)

type ScanStatus string

const (
	ScanWaiting  ScanStatus = "waiting"
	ScanReady    ScanStatus = "ready"
	ScanConsumed ScanStatus = "consumed"
	ScanExpired  ScanStatus = "expired"
)

// Finished reports whether the scan can no longer change state.
func (s ScanStatus) Finished() bool {
	return s == ScanConsumed || s == ScanExpired
}

type ScanRecord struct {
	ID         int64
	LockUserID int64
	AssignerID int64
	StartedAt  time.Time
	Status     ScanStatus
	RFID       string
	DoorID     *int64 // door whose controller reported the scan
	FinishedAt *time.Time
}

type ScanStore interface {
	CreateScan(ctx context.Context, rec ScanRecord) (ScanRecord, error)
	GetScan(ctx context.Context, id int64) (ScanRecord, error)
	// LatestWaiting returns the most recently started waiting scan.
	LatestWaiting(ctx context.Context) (ScanRecord, error)

	// MarkScanReady moves a waiting scan to ready. ErrScanNotReady if the
	// scan is no longer waiting.
	MarkScanReady(ctx context.Context, id int64, rfid string, doorID int64) error
	// MarkScanExpired expires a waiting or ready scan; finished scans are
	// left alone.
	MarkScanExpired(ctx context.Context, id int64, at time.Time) error

	// ExpireStartedBefore expires every scan in the given unfinished status
	// that was started before cutoff.
	ExpireStartedBefore(ctx context.Context, status ScanStatus, cutoff, at time.Time) (int64, error)
	// PruneFinishedBefore deletes consumed and expired scans finished before
	// cutoff.
	PruneFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
