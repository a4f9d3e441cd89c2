package memory

import (
	"context"
	"slices"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

func (s *Store) RecordAccess(_ context.Context, rec store.AccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAccess++
	rec.ID = s.nextAccess
	rec.AccessedAt = nowUTC(rec.AccessedAt)
	s.access = append(s.access, rec)
	return nil
}

func (s *Store) ListAccess(_ context.Context, f store.AccessFilter) ([]store.AccessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.AccessRecord
	for i := len(s.access) - 1; i >= 0; i-- {
		a := s.access[i]
		if f.LockUserID != 0 && (a.LockUserID == nil || *a.LockUserID != f.LockUserID) {
			continue
		}
		if f.DoorID != 0 && (a.DoorID == nil || *a.DoorID != f.DoorID) {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) LastAccess(_ context.Context, lockUserID int64) (store.AccessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last store.AccessRecord
	found := false
	for _, a := range s.access {
		if !a.Granted || a.LockUserID == nil || *a.LockUserID != lockUserID {
			continue
		}
		if !found || !a.AccessedAt.Before(last.AccessedAt) {
			last = a
			found = true
		}
	}
	if !found {
		return store.AccessRecord{}, store.ErrNotFound
	}
	return last, nil
}

func (s *Store) VisitCounts(_ context.Context, since time.Time) ([]store.VisitCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[int64]int)
	for _, a := range s.access {
		if !a.Granted || a.AccessedAt.Before(since) {
			continue
		}
		day := a.AccessedAt.UTC().Truncate(24 * time.Hour).Unix()
		byDay[day]++
	}

	out := make([]store.VisitCount, 0, len(byDay))
	for day, n := range byDay {
		out = append(out, store.VisitCount{Day: time.Unix(day, 0).UTC(), Count: n})
	}
	slices.SortFunc(out, func(a, b store.VisitCount) int { return a.Day.Compare(b.Day) })
	return out, nil
}
