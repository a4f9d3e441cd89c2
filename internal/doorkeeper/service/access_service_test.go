package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/service"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
	"github.com/rfidlock/doorkeeper/internal/events"
)

// ── Decisions ────────────────────────────────────────────────────────────────

func TestCheck_Decisions(t *testing.T) {
	e := newEnv(t)
	e.issue(t, "CARD000001")
	e.events.Drain()

	cases := []struct {
		name    string
		req     types.CheckRequest
		granted bool
		reason  string
	}{
		{"permitted door", types.CheckRequest{DoorID: e.front.ID, RFID: "CARD000001"}, true, types.ReasonGranted},
		{"other door", types.CheckRequest{DoorID: e.back.ID, RFID: "CARD000001"}, false, types.ReasonDoorNotPermitted},
		{"unknown card", types.CheckRequest{DoorID: e.front.ID, RFID: "CARD999999"}, false, types.ReasonUnknownKeycard},
		{"unknown door", types.CheckRequest{DoorID: 404, RFID: "CARD000001"}, false, types.ReasonUnknownDoor},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, err := e.access.Check(context.Background(), c.req)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if resp.Granted != c.granted || resp.Reason != c.reason {
				t.Errorf("got granted=%v reason=%q, want %v %q", resp.Granted, resp.Reason, c.granted, c.reason)
			}
			if resp.DoorID != c.req.DoorID {
				t.Errorf("expected door_id echoed, got %d", resp.DoorID)
			}
		})
	}

	log, err := e.access.List(context.Background(), types.AccessQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(log) != len(cases)+1 { // +1 for the scan capture in issue
		t.Fatalf("expected every decision logged, got %d rows", len(log))
	}
	if got := kinds(e.events.Drain())[events.KindAccess]; got != len(cases) {
		t.Errorf("expected %d access events, got %d", len(cases), got)
	}
}

func TestCheck_InvalidRFID(t *testing.T) {
	e := newEnv(t)
	for _, rfid := range []string{"", "SHORT", "ELEVENCHARS", "BAD-CHAR-1"} {
		_, err := e.access.Check(context.Background(), types.CheckRequest{DoorID: e.front.ID, RFID: rfid})
		if !errors.Is(err, service.ErrInvalidRFID) {
			t.Errorf("rfid %q: expected ErrInvalidRFID, got %v", rfid, err)
		}
	}
	if log, _ := e.access.List(context.Background(), types.AccessQuery{}); len(log) != 0 {
		t.Errorf("invalid requests must not be logged, got %d rows", len(log))
	}
}

func TestCheck_MarksDoorSeen(t *testing.T) {
	e := newEnv(t)
	if _, err := e.access.Check(context.Background(), types.CheckRequest{DoorID: e.front.ID, RFID: "CARD000001"}); err != nil {
		t.Fatalf("Check: %v", err)
	}
	d, _ := e.mem.GetDoor(context.Background(), e.front.ID)
	if d.LastSeenAt == nil || !d.LastSeenAt.Equal(e.clock.Now()) {
		t.Errorf("expected last_seen_at = now, got %v", d.LastSeenAt)
	}
}

// ── Scan intercept ───────────────────────────────────────────────────────────

func TestCheck_CapturesWaitingScan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sc, err := e.scans.Start(ctx, e.super, e.user.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.clock.Advance(90 * time.Second)

	resp, err := e.access.Check(ctx, types.CheckRequest{DoorID: e.back.ID, RFID: "NEWCARD001", DataPoint: "reader=2"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Granted || resp.Reason != types.ReasonKeycardScanned {
		t.Fatalf("expected capture, got %+v", resp)
	}

	got, err := e.scans.Status(ctx, sc.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != "ready" || got.RFID != "NEWCARD001" || got.DoorID == nil || *got.DoorID != e.back.ID {
		t.Errorf("unexpected scan: %+v", got)
	}

	// The next read is a normal check again.
	resp, _ = e.access.Check(ctx, types.CheckRequest{DoorID: e.back.ID, RFID: "NEWCARD001"})
	if resp.Reason != types.ReasonUnknownKeycard {
		t.Errorf("expected normal check after capture, got %q", resp.Reason)
	}

	log, _ := e.access.List(ctx, types.AccessQuery{LockUserID: e.user.ID})
	if len(log) != 1 || log[0].Reason != types.ReasonKeycardScanned || log[0].DataPoint != "reader=2" {
		t.Errorf("expected capture logged against the scan's user, got %+v", log)
	}
}

func TestCheck_TimedOutScanIsExpiredAndCardChecked(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.issue(t, "CARD000001")

	sc, err := e.scans.Start(ctx, e.super, e.user.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.clock.Advance(policy.Timeout + time.Second)

	resp, err := e.access.Check(ctx, types.CheckRequest{DoorID: e.front.ID, RFID: "CARD000001"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !resp.Granted {
		t.Fatalf("expected a normal grant after timeout, got %+v", resp)
	}

	rec, _ := e.mem.GetScan(ctx, sc.ID)
	if rec.Status != store.ScanExpired {
		t.Errorf("expected scan expired, got %s", rec.Status)
	}
}

func TestCheck_UnknownDoorDoesNotCaptureScan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sc, _ := e.scans.Start(ctx, e.super, e.user.ID)
	resp, _ := e.access.Check(ctx, types.CheckRequest{DoorID: 404, RFID: "NEWCARD001"})
	if resp.Reason != types.ReasonUnknownDoor {
		t.Fatalf("expected unknown_door, got %q", resp.Reason)
	}
	rec, _ := e.mem.GetScan(ctx, sc.ID)
	if rec.Status != store.ScanWaiting {
		t.Errorf("scan should still be waiting, got %s", rec.Status)
	}
}

// ── Log & chart ──────────────────────────────────────────────────────────────

func TestList_LimitClamped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		e.clock.Advance(time.Second)
		_, _ = e.access.Check(ctx, types.CheckRequest{DoorID: e.front.ID, RFID: "CARD999999"})
	}

	got, _ := e.access.List(ctx, types.AccessQuery{Limit: 2})
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].AccessedAt <= got[1].AccessedAt {
		t.Errorf("expected newest first: %s then %s", got[0].AccessedAt, got[1].AccessedAt)
	}
}

func TestVisitChart_ZeroFilled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.issue(t, "CARD000001")

	today := e.clock.Now()
	check := func() {
		if _, err := e.access.Check(ctx, types.CheckRequest{DoorID: e.front.ID, RFID: "CARD000001"}); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}

	// Two visits two days ago, a denial yesterday, one visit today.
	e.clock.t = today.AddDate(0, 0, -2)
	check()
	check()
	e.clock.t = today.AddDate(0, 0, -1)
	_, _ = e.access.Check(ctx, types.CheckRequest{DoorID: e.back.ID, RFID: "CARD000001"})
	e.clock.t = today
	check()

	chart, err := e.access.VisitChart(ctx, 4)
	if err != nil {
		t.Fatalf("VisitChart: %v", err)
	}
	want := []types.VisitDay{
		{Day: "2026-05-01", Count: 0},
		{Day: "2026-05-02", Count: 2},
		{Day: "2026-05-03", Count: 0},
		{Day: "2026-05-04", Count: 1},
	}
	if len(chart.Days) != len(want) {
		t.Fatalf("expected %d days, got %+v", len(want), chart.Days)
	}
	for i := range want {
		if chart.Days[i] != want[i] {
			t.Errorf("day %d: want %+v, got %+v", i, want[i], chart.Days[i])
		}
	}
	if chart.Total != 3 {
		t.Errorf("expected total 3, got %d", chart.Total)
	}

	def, _ := e.access.VisitChart(ctx, 0)
	if len(def.Days) != service.DefaultChartDays {
		t.Errorf("expected default %d days, got %d", service.DefaultChartDays, len(def.Days))
	}
	clamped, _ := e.access.VisitChart(ctx, 10000)
	if len(clamped.Days) != service.MaxChartDays {
		t.Errorf("expected clamp to %d days, got %d", service.MaxChartDays, len(clamped.Days))
	}
}
