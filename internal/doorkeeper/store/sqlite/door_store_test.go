package sqlite_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

func TestDoorStore_CreateUpdateConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.stores.Doors.CreateDoor(ctx, store.DoorRecord{Name: "Front"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate name: expected ErrConflict, got %v", err)
	}

	back, err := f.stores.Doors.CreateDoor(ctx, store.DoorRecord{Name: "Back", Description: "yard", CreatedAt: t0})
	if err != nil {
		t.Fatalf("CreateDoor: %v", err)
	}

	back.Description = "garden"
	back.UpdatedAt = t0.Add(time.Hour)
	got, err := f.stores.Doors.UpdateDoor(ctx, back)
	if err != nil {
		t.Fatalf("UpdateDoor: %v", err)
	}
	if got.Description != "garden" || !got.UpdatedAt.Equal(t0.Add(time.Hour)) || !got.CreatedAt.Equal(t0) {
		t.Errorf("unexpected updated door: %+v", got)
	}

	back.Name = "Front"
	if _, err := f.stores.Doors.UpdateDoor(ctx, back); !errors.Is(err, store.ErrConflict) {
		t.Errorf("rename to taken name: expected ErrConflict, got %v", err)
	}

	if _, err := f.stores.Doors.UpdateDoor(ctx, store.DoorRecord{ID: 9999, Name: "Nope"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing door: expected ErrNotFound, got %v", err)
	}

	doors, err := f.stores.Doors.ListDoors(ctx)
	if err != nil {
		t.Fatalf("ListDoors: %v", err)
	}
	if len(doors) != 2 || doors[0].ID != f.door.ID {
		t.Errorf("unexpected door list: %+v", doors)
	}
}

func TestDoorStore_MarkDoorSeen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if f.door.LastSeenAt != nil {
		t.Fatalf("new door should not be seen yet")
	}
	if err := f.stores.Doors.MarkDoorSeen(ctx, f.door.ID, t0.Add(time.Minute)); err != nil {
		t.Fatalf("MarkDoorSeen: %v", err)
	}
	d, _ := f.stores.Doors.GetDoor(ctx, f.door.ID)
	if d.LastSeenAt == nil || !d.LastSeenAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("unexpected last seen: %v", d.LastSeenAt)
	}
	if err := f.stores.Doors.MarkDoorSeen(ctx, 9999, t0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDoorStore_AllowedRFIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, _ := f.stores.Doors.CreateDoor(ctx, store.DoorRecord{Name: "Side"})
	outsider, err := f.stores.LockUsers.CreateLockUser(ctx, store.LockUserRecord{
		FirstName: "O", LastName: "U", Email: "o@example.org", DoorIDs: []int64{other.ID},
	})
	if err != nil {
		t.Fatalf("CreateLockUser: %v", err)
	}

	for _, c := range []struct {
		user int64
		rfid string
	}{{f.user.ID, "ZZZZZZZZZZ"}, {outsider.ID, "YYYYYYYYYY"}} {
		sc := f.readyScan(t, c.user, c.rfid)
		if _, err := f.stores.Keycards.AssignFromScan(ctx, store.AssignParams{ScanID: sc.ID, LockUserID: c.user, At: t0}); err != nil {
			t.Fatalf("assign %s: %v", c.rfid, err)
		}
	}

	got, err := f.stores.Doors.AllowedRFIDs(ctx, f.door.ID)
	if err != nil {
		t.Fatalf("AllowedRFIDs: %v", err)
	}
	if !slices.Equal(got, []string{"ZZZZZZZZZZ"}) {
		t.Errorf("front door: got %v", got)
	}

	if _, err := f.stores.Keycards.RevokeActive(ctx, f.user.ID, f.staff.ID, t0); err != nil {
		t.Fatalf("RevokeActive: %v", err)
	}
	got, _ = f.stores.Doors.AllowedRFIDs(ctx, f.door.ID)
	if len(got) != 0 {
		t.Errorf("expected no rfids after revoke, got %v", got)
	}

	if _, err := f.stores.Doors.AllowedRFIDs(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown door: expected ErrNotFound, got %v", err)
	}
}
