package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/service"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

func TestStart_Permissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	backOnly, err := e.users.Create(ctx, e.super, types.LockUserInput{
		FirstName: "B", LastName: "O", Email: "bo@example.org", DoorIDs: []int64{e.back.ID},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := e.scans.Start(ctx, e.manager, backOnly.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("manager of another door: expected ErrForbidden, got %v", err)
	}
	if _, err := e.scans.Start(ctx, e.manager, e.user.ID); err != nil {
		t.Errorf("manager of the user's door: %v", err)
	}
	if _, err := e.scans.Start(ctx, e.super, backOnly.ID); err != nil {
		t.Errorf("superuser: %v", err)
	}
	if _, err := e.scans.Start(ctx, e.super, 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown user: expected ErrNotFound, got %v", err)
	}
}

func TestStart_ReportsDeadline(t *testing.T) {
	e := newEnv(t)
	sc, err := e.scans.Start(context.Background(), e.super, e.user.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sc.Status != "waiting" || sc.AssignerID != e.super.ID {
		t.Errorf("unexpected scan: %+v", sc)
	}
	want := e.clock.Now().Add(policy.Timeout).Format(time.RFC3339Nano)
	if sc.ExpiresAt != want {
		t.Errorf("expires_at = %s, want %s", sc.ExpiresAt, want)
	}
}

func TestStatus_ExpiresWaitingScanOnRead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sc, _ := e.scans.Start(ctx, e.super, e.user.ID)

	e.clock.Advance(policy.Timeout)
	got, err := e.scans.Status(ctx, sc.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != "waiting" {
		t.Fatalf("scan at exactly the timeout is still waiting, got %s", got.Status)
	}

	e.clock.Advance(time.Second)
	got, _ = e.scans.Status(ctx, sc.ID)
	if got.Status != "expired" || got.FinishedAt == "" || got.ExpiresAt != "" {
		t.Fatalf("expected expired scan, got %+v", got)
	}

	rec, _ := e.mem.GetScan(ctx, sc.ID)
	if rec.Status != store.ScanExpired {
		t.Errorf("expiry must be persisted, got %s", rec.Status)
	}
}

func TestStatus_NotFound(t *testing.T) {
	e := newEnv(t)
	if _, err := e.scans.Status(context.Background(), 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
