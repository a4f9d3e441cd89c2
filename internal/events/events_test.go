package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	a, b := NewRecorder(4), NewRecorder(4)
	boom := errors.New("boom")

	m := Multi{a, nil, failing{boom}, b}
	err := m.Publish(context.Background(), New(KindAccess, time.Now(), nil))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined boom error, got %v", err)
	}
	if len(a.Drain()) != 1 || len(b.Drain()) != 1 {
		t.Error("expected both recorders to receive the event")
	}
}

func TestNew_AssignsIDAndUTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	ev := New(KindScan, time.Date(2026, 1, 1, 10, 0, 0, 0, loc), "p")
	if ev.ID == "" {
		t.Error("expected an id")
	}
	if ev.At.Location() != time.UTC || ev.At.Hour() != 9 {
		t.Errorf("expected UTC time, got %v", ev.At)
	}
}
