package store

import (
	"context"
	"time"
)

type StaffRecord struct {
	ID             int64
	Username       string
	PasswordHash   string
	IsSuperuser    bool
	ManagedDoorIDs []int64 // sorted
	CreatedAt      time.Time
}

type StaffStore interface {
	CreateStaff(ctx context.Context, rec StaffRecord) (StaffRecord, error)
	GetStaff(ctx context.Context, id int64) (StaffRecord, error)
	GetStaffByUsername(ctx context.Context, username string) (StaffRecord, error)
}
