package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

func TestScanStore_ReadyOnlyFromWaiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc, err := f.stores.Scans.CreateScan(ctx, store.ScanRecord{LockUserID: f.user.ID, AssignerID: f.staff.ID, StartedAt: t0})
	if err != nil {
		t.Fatalf("CreateScan: %v", err)
	}
	if sc.Status != store.ScanWaiting {
		t.Fatalf("expected waiting, got %s", sc.Status)
	}

	latest, err := f.stores.Scans.LatestWaiting(ctx)
	if err != nil || latest.ID != sc.ID {
		t.Fatalf("LatestWaiting: got %+v, %v", latest, err)
	}

	if err := f.stores.Scans.MarkScanReady(ctx, sc.ID, "0123456789", f.door.ID); err != nil {
		t.Fatalf("MarkScanReady: %v", err)
	}
	got, _ := f.stores.Scans.GetScan(ctx, sc.ID)
	if got.Status != store.ScanReady || got.RFID != "0123456789" || got.DoorID == nil || *got.DoorID != f.door.ID {
		t.Errorf("unexpected ready scan: %+v", got)
	}

	if err := f.stores.Scans.MarkScanReady(ctx, sc.ID, "9999999999", f.door.ID); !errors.Is(err, store.ErrScanNotReady) {
		t.Errorf("second MarkScanReady: expected ErrScanNotReady, got %v", err)
	}
	if _, err := f.stores.Scans.LatestWaiting(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected no waiting scan, got %v", err)
	}
}

func TestScanStore_MarkReadyUnknownDoor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc, _ := f.stores.Scans.CreateScan(ctx, store.ScanRecord{LockUserID: f.user.ID, AssignerID: f.staff.ID, StartedAt: t0})
	if err := f.stores.Scans.MarkScanReady(ctx, sc.ID, "0123456789", 424242); err != nil {
		t.Fatalf("MarkScanReady: %v", err)
	}
	got, _ := f.stores.Scans.GetScan(ctx, sc.ID)
	if got.DoorID != nil {
		t.Errorf("expected nil door for unknown door, got %d", *got.DoorID)
	}
}

func TestScanStore_CreateScanUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.stores.Scans.CreateScan(context.Background(), store.ScanRecord{LockUserID: 9999, AssignerID: f.staff.ID, StartedAt: t0})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScanStore_ExpireAndPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, _ := f.stores.Scans.CreateScan(ctx, store.ScanRecord{LockUserID: f.user.ID, AssignerID: f.staff.ID, StartedAt: t0})
	fresh, _ := f.stores.Scans.CreateScan(ctx, store.ScanRecord{LockUserID: f.user.ID, AssignerID: f.staff.ID, StartedAt: t0.Add(10 * time.Minute)})
	ready := f.readyScan(t, f.user.ID, "1111111111")

	// Only waiting scans started before the cutoff are touched.
	n, err := f.stores.Scans.ExpireStartedBefore(ctx, store.ScanWaiting, t0.Add(5*time.Minute), t0.Add(6*time.Minute))
	if err != nil {
		t.Fatalf("ExpireStartedBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	for id, want := range map[int64]store.ScanStatus{
		old.ID:   store.ScanExpired,
		fresh.ID: store.ScanWaiting,
		ready.ID: store.ScanReady,
	} {
		got, _ := f.stores.Scans.GetScan(ctx, id)
		if got.Status != want {
			t.Errorf("scan %d: expected %s, got %s", id, want, got.Status)
		}
	}

	if n, _ := f.stores.Scans.ExpireStartedBefore(ctx, store.ScanExpired, t0.Add(time.Hour), t0); n != 0 {
		t.Errorf("finished status must be a no-op, got %d", n)
	}

	n, err = f.stores.Scans.PruneFinishedBefore(ctx, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneFinishedBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	if _, err := f.stores.Scans.GetScan(ctx, old.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected pruned scan gone, got %v", err)
	}
}

func TestScanStore_MarkScanExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.stores.Scans.MarkScanExpired(ctx, 9999, t0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	sc := f.readyScan(t, f.user.ID, "2222222222")
	if err := f.stores.Scans.MarkScanExpired(ctx, sc.ID, t0.Add(time.Minute)); err != nil {
		t.Fatalf("MarkScanExpired: %v", err)
	}
	got, _ := f.stores.Scans.GetScan(ctx, sc.ID)
	if got.Status != store.ScanExpired || got.FinishedAt == nil || !got.FinishedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("unexpected expired scan: %+v", got)
	}
}
