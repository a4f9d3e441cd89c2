package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

func (s *Store) CreateDoor(_ context.Context, rec store.DoorRecord) (store.DoorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.doors {
		if d.Name == rec.Name {
			return store.DoorRecord{}, store.ErrConflict
		}
	}

	s.nextDoor++
	rec.ID = s.nextDoor
	rec.CreatedAt = nowUTC(rec.CreatedAt)
	rec.UpdatedAt = rec.CreatedAt
	s.doors[rec.ID] = rec
	return rec, nil
}

func (s *Store) UpdateDoor(_ context.Context, rec store.DoorRecord) (store.DoorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.doors[rec.ID]
	if !ok {
		return store.DoorRecord{}, store.ErrNotFound
	}
	for id, d := range s.doors {
		if id != rec.ID && d.Name == rec.Name {
			return store.DoorRecord{}, store.ErrConflict
		}
	}

	cur.Name = rec.Name
	cur.Description = rec.Description
	cur.UpdatedAt = nowUTC(rec.UpdatedAt)
	s.doors[rec.ID] = cur
	return cur, nil
}

func (s *Store) GetDoor(_ context.Context, id int64) (store.DoorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.doors[id]
	if !ok {
		return store.DoorRecord{}, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListDoors(_ context.Context) ([]store.DoorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.DoorRecord, 0, len(s.doors))
	for _, d := range s.doors {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b store.DoorRecord) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) MarkDoorSeen(_ context.Context, id int64, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.doors[id]
	if !ok {
		return store.ErrNotFound
	}
	d.LastSeenAt = ptr(nowUTC(t))
	s.doors[id] = d
	return nil
}

func (s *Store) AllowedRFIDs(_ context.Context, doorID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.doors[doorID]; !ok {
		return nil, store.ErrNotFound
	}

	var out []string
	for _, k := range s.keycards {
		if !k.Active() {
			continue
		}
		u, ok := s.lockUsers[k.LockUserID]
		if ok && slices.Contains(u.DoorIDs, doorID) {
			out = append(out, k.RFID)
		}
	}
	slices.Sort(out)
	return out, nil
}
