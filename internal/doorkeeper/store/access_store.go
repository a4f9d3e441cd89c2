package store

import (
	"context"
	"time"
)

// AccessRecord is one row of the append-only access log.
type AccessRecord struct {
	ID         int64
	RFID       string
	AccessedAt time.Time
	LockUserID *int64
	DoorID     *int64
	Granted    bool
	Reason     string
	DataPoint  string
}

type AccessFilter struct {
	LockUserID int64
	DoorID     int64
	Limit      int
}

// VisitCount is the number of granted accesses on one UTC day.
type VisitCount struct {
	Day   time.Time
	Count int
}

type AccessStore interface {
	RecordAccess(ctx context.Context, rec AccessRecord) error
	// ListAccess returns matching rows newest first.
	ListAccess(ctx context.Context, f AccessFilter) ([]AccessRecord, error)
	// LastAccess returns the user's most recent granted access.
	LastAccess(ctx context.Context, lockUserID int64) (AccessRecord, error)
	// VisitCounts groups granted accesses since the given time by UTC day,
	// oldest first. Days without visits are omitted.
	VisitCounts(ctx context.Context, since time.Time) ([]VisitCount, error)
}
