package store

import (
	"context"
	"time"
)

type KeycardRecord struct {
	ID         int64
	RFID       string
	LockUserID int64
	CreatedAt  time.Time
	RevokedAt  *time.Time
	AssignerID int64
	RevokerID  *int64
}

func (k KeycardRecord) Active() bool { return k.RevokedAt == nil }

// AssignParams drives KeycardStore.AssignFromScan.
type AssignParams struct {
	ScanID     int64
	LockUserID int64
	// RevokePrior revokes the user's active keycard in the same transaction.
	// Without it an active keycard makes the assignment fail with
	// ErrKeycardActive.
	RevokePrior bool
	RevokerID   int64
	At          time.Time
}

type KeycardStore interface {
	// ActiveKeycard returns ErrNotFound when the user has no active keycard.
	ActiveKeycard(ctx context.Context, lockUserID int64) (KeycardRecord, error)
	// ListKeycards returns every keycard the user ever had, newest first.
	ListKeycards(ctx context.Context, lockUserID int64) ([]KeycardRecord, error)
	FindActiveByRFID(ctx context.Context, rfid string) (KeycardRecord, error)

	// AssignFromScan atomically consumes a ready scan targeting the user and
	// creates the keycard for its RFID, with the scan's starter as assigner.
	AssignFromScan(ctx context.Context, p AssignParams) (KeycardRecord, error)

	// RevokeActive revokes the user's active keycard and returns it.
	RevokeActive(ctx context.Context, lockUserID, revokerID int64, at time.Time) (KeycardRecord, error)
}
