package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/service"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store/memory"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
	"github.com/rfidlock/doorkeeper/internal/events"
	"github.com/rfidlock/doorkeeper/internal/logging"
	"github.com/rfidlock/doorkeeper/internal/metrics"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var policy = service.ScanPolicy{Timeout: 2 * time.Minute, ReadyTTL: 15 * time.Minute}

// env is a full service stack over the memory store.
type env struct {
	mem    *memory.Store
	clock  *fakeClock
	events *events.Recorder
	deps   service.Deps

	doors    *service.DoorService
	users    *service.LockUserService
	scans    *service.ScanService
	access   *service.AccessService
	staffSvc *service.StaffService

	front, back store.DoorRecord
	super       store.StaffRecord
	manager     store.StaffRecord // manages the front door only
	user        store.LockUserRecord
}

func memoryStores(m *memory.Store) service.Stores {
	return service.Stores{Doors: m, LockUsers: m, Keycards: m, Scans: m, Access: m, Staff: m}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	e := &env{
		mem:    memory.New(),
		clock:  &fakeClock{t: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)},
		events: events.NewRecorder(256),
	}
	e.deps = service.Deps{
		Stores:  memoryStores(e.mem),
		Logger:  logging.Discard(),
		Events:  e.events,
		Metrics: metrics.New(),
		Now:     e.clock.Now,
	}
	e.doors = service.NewDoorService(e.deps)
	e.users = service.NewLockUserService(e.deps, policy)
	e.scans = service.NewScanService(e.deps, policy)
	e.access = service.NewAccessService(e.deps, policy)
	e.staffSvc = service.NewStaffService(e.deps)

	var err error
	if e.front, err = e.mem.CreateDoor(ctx, store.DoorRecord{Name: "Front"}); err != nil {
		t.Fatalf("CreateDoor: %v", err)
	}
	if e.back, err = e.mem.CreateDoor(ctx, store.DoorRecord{Name: "Back"}); err != nil {
		t.Fatalf("CreateDoor: %v", err)
	}
	if e.super, err = e.mem.CreateStaff(ctx, store.StaffRecord{Username: "root", IsSuperuser: true}); err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}
	if e.manager, err = e.mem.CreateStaff(ctx, store.StaffRecord{Username: "frontdesk", ManagedDoorIDs: []int64{e.front.ID}}); err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}
	if e.user, err = e.mem.CreateLockUser(ctx, store.LockUserRecord{
		FirstName: "Grace", LastName: "Hopper", Email: "grace@example.org", DoorIDs: []int64{e.front.ID},
	}); err != nil {
		t.Fatalf("CreateLockUser: %v", err)
	}
	return e
}

// input mirrors the stored user so tests only change what they care about.
func (e *env) input() types.LockUserInput {
	return types.LockUserInput{
		FirstName: e.user.FirstName,
		LastName:  e.user.LastName,
		Email:     e.user.Email,
		DoorIDs:   e.user.DoorIDs,
	}
}

// scanCard runs the handshake up to ready: start a scan as actor, then
// present rfid at the front door.
func (e *env) scanCard(t *testing.T, actor store.StaffRecord, userID int64, rfid string) types.Scan {
	t.Helper()
	ctx := context.Background()

	sc, err := e.scans.Start(ctx, actor, userID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := e.access.Check(ctx, types.CheckRequest{DoorID: e.front.ID, RFID: rfid})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Reason != types.ReasonKeycardScanned {
		t.Fatalf("expected scan capture, got %q", resp.Reason)
	}
	return sc
}

// issue gives userID an active keycard through the full handshake.
func (e *env) issue(t *testing.T, rfid string) {
	t.Helper()
	sc := e.scanCard(t, e.super, e.user.ID, rfid)
	in := e.input()
	in.AssignScanID = sc.ID
	in.RevokeCurrent = true
	if _, err := e.users.Save(context.Background(), e.super, e.user.ID, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func kinds(evs []events.Event) map[events.Kind]int {
	out := make(map[events.Kind]int)
	for _, ev := range evs {
		out[ev.Kind]++
	}
	return out
}
