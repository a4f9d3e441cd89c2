package store

import (
	"context"
	"time"
)

type LockUserRecord struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       string
	Address     string
	PhoneNumber string
	Birthdate   *time.Time // date only, UTC midnight
	DoorIDs     []int64    // sorted
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LockUserFilter narrows ListLockUsers. Zero values match everything.
type LockUserFilter struct {
	DoorID int64
	Active *bool // has an active keycard
}

// SaveParams drives LockUserStore.SaveLockUser.
type SaveParams struct {
	User LockUserRecord
	// Assign, when set, consumes its scan and issues the scanned keycard.
	Assign *AssignParams
	// RevokeActive revokes whatever keycard is active once Assign has run.
	RevokeActive bool
	RevokerID    int64
	At           time.Time
}

// SaveResult reports what SaveLockUser changed.
type SaveResult struct {
	User   LockUserRecord
	Issued *KeycardRecord
	// Replaced is the prior keycard revoked to make room for Issued.
	Replaced *KeycardRecord
	// Deactivated is the keycard revoked by RevokeActive, possibly Issued.
	Deactivated *KeycardRecord
}

type LockUserStore interface {
	CreateLockUser(ctx context.Context, rec LockUserRecord) (LockUserRecord, error)
	// UpdateLockUser replaces the scalar fields and the door set.
	UpdateLockUser(ctx context.Context, rec LockUserRecord) (LockUserRecord, error)
	// SaveLockUser applies UpdateLockUser and the keycard changes in p as one
	// unit. Any failure leaves the user, its keycards and the scan untouched.
	SaveLockUser(ctx context.Context, p SaveParams) (SaveResult, error)
	GetLockUser(ctx context.Context, id int64) (LockUserRecord, error)
	ListLockUsers(ctx context.Context, f LockUserFilter) ([]LockUserRecord, error)
}
