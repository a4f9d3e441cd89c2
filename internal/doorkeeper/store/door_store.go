package store

import (
	"context"
	"time"
)

type DoorRecord struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastSeenAt  *time.Time // last time a controller for this door called in
}

type DoorStore interface {
	CreateDoor(ctx context.Context, rec DoorRecord) (DoorRecord, error)
	UpdateDoor(ctx context.Context, rec DoorRecord) (DoorRecord, error)
	GetDoor(ctx context.Context, id int64) (DoorRecord, error)
	ListDoors(ctx context.Context) ([]DoorRecord, error)
	MarkDoorSeen(ctx context.Context, id int64, t time.Time) error

	// AllowedRFIDs returns the active keycard RFIDs of every lock user
	// permitted on the door, sorted.
	AllowedRFIDs(ctx context.Context, doorID int64) ([]string, error)
}
