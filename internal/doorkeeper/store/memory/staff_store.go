package memory

import (
	"context"
	"slices"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

func (s *Store) CreateStaff(_ context.Context, rec store.StaffRecord) (store.StaffRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.staff {
		if st.Username == rec.Username {
			return store.StaffRecord{}, store.ErrConflict
		}
	}
	for _, d := range rec.ManagedDoorIDs {
		if _, ok := s.doors[d]; !ok {
			return store.StaffRecord{}, store.ErrNotFound
		}
	}

	s.nextStaff++
	rec.ID = s.nextStaff
	rec.CreatedAt = nowUTC(rec.CreatedAt)
	rec.ManagedDoorIDs = sortedIDs(rec.ManagedDoorIDs)
	s.staff[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetStaff(_ context.Context, id int64) (store.StaffRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.staff[id]
	if !ok {
		return store.StaffRecord{}, store.ErrNotFound
	}
	st.ManagedDoorIDs = slices.Clone(st.ManagedDoorIDs)
	return st, nil
}

func (s *Store) GetStaffByUsername(_ context.Context, username string) (store.StaffRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.staff {
		if st.Username == username {
			st.ManagedDoorIDs = slices.Clone(st.ManagedDoorIDs)
			return st, nil
		}
	}
	return store.StaffRecord{}, store.ErrNotFound
}
