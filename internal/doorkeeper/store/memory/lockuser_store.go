package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

func (s *Store) CreateLockUser(_ context.Context, rec store.LockUserRecord) (store.LockUserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUserLocked(rec); err != nil {
		return store.LockUserRecord{}, err
	}

	s.nextUser++
	rec.ID = s.nextUser
	rec.DoorIDs = sortedIDs(rec.DoorIDs)
	rec.CreatedAt = nowUTC(rec.CreatedAt)
	rec.UpdatedAt = rec.CreatedAt
	s.lockUsers[rec.ID] = rec
	return rec, nil
}

func (s *Store) UpdateLockUser(_ context.Context, rec store.LockUserRecord) (store.LockUserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUpdateLocked(rec); err != nil {
		return store.LockUserRecord{}, err
	}
	return s.updateLocked(rec), nil
}

func (s *Store) checkUpdateLocked(rec store.LockUserRecord) error {
	if _, ok := s.lockUsers[rec.ID]; !ok {
		return store.ErrNotFound
	}
	return s.checkUserLocked(rec)
}

func (s *Store) updateLocked(rec store.LockUserRecord) store.LockUserRecord {
	rec.CreatedAt = s.lockUsers[rec.ID].CreatedAt
	rec.UpdatedAt = nowUTC(rec.UpdatedAt)
	rec.DoorIDs = sortedIDs(rec.DoorIDs)
	s.lockUsers[rec.ID] = rec

	rec.DoorIDs = slices.Clone(rec.DoorIDs)
	return rec
}

// SaveLockUser validates every step before touching any map, so a rejected
// save leaves the store exactly as it was.
func (s *Store) SaveLockUser(_ context.Context, p store.SaveParams) (store.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUpdateLocked(p.User); err != nil {
		return store.SaveResult{}, err
	}
	if p.Assign != nil {
		if err := s.checkAssignLocked(*p.Assign); err != nil {
			return store.SaveResult{}, err
		}
	}

	res := store.SaveResult{User: s.updateLocked(p.User)}
	if p.Assign != nil {
		k, prior := s.assignLocked(*p.Assign)
		res.Issued = &k
		res.Replaced = prior
	}
	if p.RevokeActive {
		if i := s.activeIndexLocked(func(k store.KeycardRecord) bool { return k.LockUserID == p.User.ID }); i >= 0 {
			k := s.revokeLocked(i, p.RevokerID, nowUTC(p.At))
			res.Deactivated = &k
		}
	}
	return res, nil
}

// checkUserLocked enforces the unique email and door foreign keys.
func (s *Store) checkUserLocked(rec store.LockUserRecord) error {
	for id, u := range s.lockUsers {
		if id != rec.ID && sameFold(u.Email, rec.Email) {
			return store.ErrConflict
		}
	}
	for _, d := range rec.DoorIDs {
		if _, ok := s.doors[d]; !ok {
			return store.ErrNotFound
		}
	}
	return nil
}

func (s *Store) GetLockUser(_ context.Context, id int64) (store.LockUserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.lockUsers[id]
	if !ok {
		return store.LockUserRecord{}, store.ErrNotFound
	}
	u.DoorIDs = slices.Clone(u.DoorIDs)
	return u, nil
}

func (s *Store) ListLockUsers(_ context.Context, f store.LockUserFilter) ([]store.LockUserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.LockUserRecord, 0, len(s.lockUsers))
	for _, u := range s.lockUsers {
		if f.DoorID != 0 && !slices.Contains(u.DoorIDs, f.DoorID) {
			continue
		}
		if f.Active != nil && s.hasActiveLocked(u.ID) != *f.Active {
			continue
		}
		u.DoorIDs = slices.Clone(u.DoorIDs)
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b store.LockUserRecord) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) hasActiveLocked(userID int64) bool {
	for _, k := range s.keycards {
		if k.LockUserID == userID && k.Active() {
			return true
		}
	}
	return false
}
