package memory

import (
	"context"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

func (s *Store) ActiveKeycard(_ context.Context, lockUserID int64) (store.KeycardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.activeIndexLocked(func(k store.KeycardRecord) bool { return k.LockUserID == lockUserID })
	if i < 0 {
		return store.KeycardRecord{}, store.ErrNotFound
	}
	return s.keycards[i], nil
}

func (s *Store) ListKeycards(_ context.Context, lockUserID int64) ([]store.KeycardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.KeycardRecord
	for i := len(s.keycards) - 1; i >= 0; i-- {
		if s.keycards[i].LockUserID == lockUserID {
			out = append(out, s.keycards[i])
		}
	}
	return out, nil
}

func (s *Store) FindActiveByRFID(_ context.Context, rfid string) (store.KeycardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.activeIndexLocked(func(k store.KeycardRecord) bool { return k.RFID == rfid })
	if i < 0 {
		return store.KeycardRecord{}, store.ErrNotFound
	}
	return s.keycards[i], nil
}

func (s *Store) AssignFromScan(_ context.Context, p store.AssignParams) (store.KeycardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAssignLocked(p); err != nil {
		return store.KeycardRecord{}, err
	}
	k, _ := s.assignLocked(p)
	return k, nil
}

// checkAssignLocked reports why p cannot be applied, without mutating.
func (s *Store) checkAssignLocked(p store.AssignParams) error {
	scan, ok := s.scans[p.ScanID]
	if !ok {
		return store.ErrNotFound
	}
	if scan.Status != store.ScanReady || scan.LockUserID != p.LockUserID {
		return store.ErrScanNotReady
	}
	if _, ok := s.lockUsers[p.LockUserID]; !ok {
		return store.ErrNotFound
	}

	prior := s.activeIndexLocked(func(k store.KeycardRecord) bool { return k.LockUserID == p.LockUserID })
	if prior >= 0 && !p.RevokePrior {
		return store.ErrKeycardActive
	}
	other := s.activeIndexLocked(func(k store.KeycardRecord) bool {
		return k.RFID == scan.RFID && k.LockUserID != p.LockUserID
	})
	if other >= 0 {
		return store.ErrRFIDInUse
	}
	return nil
}

// assignLocked applies a checked p. It returns the new keycard and the
// revoked prior keycard, if any.
func (s *Store) assignLocked(p store.AssignParams) (store.KeycardRecord, *store.KeycardRecord) {
	at := nowUTC(p.At)
	scan := s.scans[p.ScanID]

	var revoked *store.KeycardRecord
	if prior := s.activeIndexLocked(func(k store.KeycardRecord) bool { return k.LockUserID == p.LockUserID }); prior >= 0 {
		k := s.revokeLocked(prior, p.RevokerID, at)
		revoked = &k
	}

	scan.Status = store.ScanConsumed
	scan.FinishedAt = ptr(at)
	s.scans[scan.ID] = scan

	s.nextKeycard++
	k := store.KeycardRecord{
		ID:         s.nextKeycard,
		RFID:       scan.RFID,
		LockUserID: p.LockUserID,
		CreatedAt:  at,
		AssignerID: scan.AssignerID,
	}
	s.keycards = append(s.keycards, k)
	return k, revoked
}

func (s *Store) RevokeActive(_ context.Context, lockUserID, revokerID int64, at time.Time) (store.KeycardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.activeIndexLocked(func(k store.KeycardRecord) bool { return k.LockUserID == lockUserID })
	if i < 0 {
		return store.KeycardRecord{}, store.ErrNotFound
	}
	return s.revokeLocked(i, revokerID, nowUTC(at)), nil
}

func (s *Store) revokeLocked(i int, revokerID int64, at time.Time) store.KeycardRecord {
	s.keycards[i].RevokedAt = ptr(at)
	s.keycards[i].RevokerID = ptr(revokerID)
	return s.keycards[i]
}

func (s *Store) activeIndexLocked(match func(store.KeycardRecord) bool) int {
	for i, k := range s.keycards {
		if k.Active() && match(k) {
			return i
		}
	}
	return -1
}
