package sqlite_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

func TestLockUserStore_EmailUniqueCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	_, err := f.stores.LockUsers.CreateLockUser(context.Background(), store.LockUserRecord{
		FirstName: "X", LastName: "Y", Email: "ADA@example.org",
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestLockUserStore_UnknownDoor(t *testing.T) {
	f := newFixture(t)
	_, err := f.stores.LockUsers.CreateLockUser(context.Background(), store.LockUserRecord{
		FirstName: "X", LastName: "Y", Email: "x@example.org", DoorIDs: []int64{9999},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLockUserStore_UpdateReplacesDoors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	side, _ := f.stores.Doors.CreateDoor(ctx, store.DoorRecord{Name: "Side"})
	bday := time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)

	u := f.user
	u.DoorIDs = []int64{side.ID}
	u.Birthdate = &bday
	u.PhoneNumber = "555-0100"
	u.UpdatedAt = t0.Add(time.Hour)

	got, err := f.stores.LockUsers.UpdateLockUser(ctx, u)
	if err != nil {
		t.Fatalf("UpdateLockUser: %v", err)
	}
	if !slices.Equal(got.DoorIDs, []int64{side.ID}) {
		t.Errorf("expected doors replaced, got %v", got.DoorIDs)
	}
	if got.Birthdate == nil || !got.Birthdate.Equal(bday) || got.PhoneNumber != "555-0100" {
		t.Errorf("unexpected user: %+v", got)
	}

	if _, err := f.stores.LockUsers.UpdateLockUser(ctx, store.LockUserRecord{ID: 9999, Email: "n@example.org"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLockUserStore_SaveAssignsAndRevokesPrior(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.readyScan(t, f.user.ID, "1111111111")
	old, err := f.stores.Keycards.AssignFromScan(ctx, store.AssignParams{ScanID: first.ID, LockUserID: f.user.ID, At: t0})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	second := f.readyScan(t, f.user.ID, "2222222222")
	u := f.user
	u.FirstName = "Augusta"
	u.UpdatedAt = t0.Add(time.Hour)
	res, err := f.stores.LockUsers.SaveLockUser(ctx, store.SaveParams{
		User: u,
		Assign: &store.AssignParams{
			ScanID: second.ID, LockUserID: f.user.ID, RevokePrior: true, RevokerID: f.staff.ID, At: t0.Add(time.Hour),
		},
		RevokerID: f.staff.ID,
		At:        t0.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("SaveLockUser: %v", err)
	}
	if res.User.FirstName != "Augusta" {
		t.Errorf("expected updated name, got %q", res.User.FirstName)
	}
	if res.Issued == nil || res.Issued.RFID != "2222222222" || !res.Issued.Active() {
		t.Errorf("unexpected issued keycard: %+v", res.Issued)
	}
	if res.Replaced == nil || res.Replaced.ID != old.ID || res.Replaced.Active() {
		t.Errorf("expected prior keycard revoked, got %+v", res.Replaced)
	}
	if res.Deactivated != nil {
		t.Errorf("nothing should be deactivated, got %+v", res.Deactivated)
	}
}

func TestLockUserStore_SaveRollsBackOnFailedAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc := f.readyScan(t, f.user.ID, "4444444444")
	card, err := f.stores.Keycards.AssignFromScan(ctx, store.AssignParams{ScanID: sc.ID, LockUserID: f.user.ID, At: t0})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	// The scan is already consumed, so the assign step fails after the
	// profile update has run inside the transaction.
	u := f.user
	u.FirstName = "Changed"
	u.DoorIDs = nil
	u.UpdatedAt = t0.Add(time.Hour)
	_, err = f.stores.LockUsers.SaveLockUser(ctx, store.SaveParams{
		User: u,
		Assign: &store.AssignParams{
			ScanID: sc.ID, LockUserID: f.user.ID, RevokePrior: true, RevokerID: f.staff.ID, At: t0.Add(time.Hour),
		},
		RevokeActive: true,
		RevokerID:    f.staff.ID,
		At:           t0.Add(time.Hour),
	})
	if !errors.Is(err, store.ErrScanNotReady) {
		t.Fatalf("expected ErrScanNotReady, got %v", err)
	}

	got, err := f.stores.LockUsers.GetLockUser(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("GetLockUser: %v", err)
	}
	if got.FirstName != "Ada" || !slices.Equal(got.DoorIDs, []int64{f.door.ID}) || !got.UpdatedAt.Equal(t0) {
		t.Errorf("rejected save must leave the user unchanged: %+v", got)
	}
	active, err := f.stores.Keycards.ActiveKeycard(ctx, f.user.ID)
	if err != nil || active.ID != card.ID {
		t.Errorf("expected keycard %d still active, got %+v (%v)", card.ID, active, err)
	}
}

func TestLockUserStore_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	side, _ := f.stores.Doors.CreateDoor(ctx, store.DoorRecord{Name: "Side"})
	other, err := f.stores.LockUsers.CreateLockUser(ctx, store.LockUserRecord{
		FirstName: "G", LastName: "H", Email: "g@example.org", DoorIDs: []int64{side.ID},
	})
	if err != nil {
		t.Fatalf("CreateLockUser: %v", err)
	}

	sc := f.readyScan(t, f.user.ID, "3333333333")
	if _, err := f.stores.Keycards.AssignFromScan(ctx, store.AssignParams{ScanID: sc.ID, LockUserID: f.user.ID, At: t0}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	ids := func(us []store.LockUserRecord) []int64 {
		var out []int64
		for _, u := range us {
			out = append(out, u.ID)
		}
		return out
	}

	active, inactive := true, false
	cases := []struct {
		name string
		f    store.LockUserFilter
		want []int64
	}{
		{"all", store.LockUserFilter{}, []int64{f.user.ID, other.ID}},
		{"door", store.LockUserFilter{DoorID: side.ID}, []int64{other.ID}},
		{"active", store.LockUserFilter{Active: &active}, []int64{f.user.ID}},
		{"inactive", store.LockUserFilter{Active: &inactive}, []int64{other.ID}},
		{"door+active", store.LockUserFilter{DoorID: side.ID, Active: &active}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := f.stores.LockUsers.ListLockUsers(ctx, c.f)
			if err != nil {
				t.Fatalf("ListLockUsers: %v", err)
			}
			if !slices.Equal(ids(got), c.want) {
				t.Errorf("want %v, got %v", c.want, ids(got))
			}
		})
	}

	all, _ := f.stores.LockUsers.ListLockUsers(ctx, store.LockUserFilter{})
	if !slices.Equal(all[0].DoorIDs, []int64{f.door.ID}) {
		t.Errorf("expected door ids populated, got %v", all[0].DoorIDs)
	}
}
