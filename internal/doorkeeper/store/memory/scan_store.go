package memory

import (
	"context"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

func (s *Store) CreateScan(_ context.Context, rec store.ScanRecord) (store.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lockUsers[rec.LockUserID]; !ok {
		return store.ScanRecord{}, store.ErrNotFound
	}

	s.nextScan++
	rec.ID = s.nextScan
	rec.StartedAt = nowUTC(rec.StartedAt)
	if rec.Status == "" {
		rec.Status = store.ScanWaiting
	}
	s.scans[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetScan(_ context.Context, id int64) (store.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scans[id]
	if !ok {
		return store.ScanRecord{}, store.ErrNotFound
	}
	return sc, nil
}

func (s *Store) LatestWaiting(_ context.Context) (store.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest store.ScanRecord
	for _, sc := range s.scans {
		if sc.Status == store.ScanWaiting && sc.ID > latest.ID {
			latest = sc
		}
	}
	if latest.ID == 0 {
		return store.ScanRecord{}, store.ErrNotFound
	}
	return latest, nil
}

func (s *Store) MarkScanReady(_ context.Context, id int64, rfid string, doorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scans[id]
	if !ok {
		return store.ErrNotFound
	}
	if sc.Status != store.ScanWaiting {
		return store.ErrScanNotReady
	}
	sc.Status = store.ScanReady
	sc.RFID = rfid
	if _, known := s.doors[doorID]; known {
		sc.DoorID = ptr(doorID)
	}
	s.scans[id] = sc
	return nil
}

func (s *Store) MarkScanExpired(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scans[id]
	if !ok {
		return store.ErrNotFound
	}
	if sc.Status.Finished() {
		return nil
	}
	sc.Status = store.ScanExpired
	sc.FinishedAt = ptr(nowUTC(at))
	s.scans[id] = sc
	return nil
}

func (s *Store) ExpireStartedBefore(_ context.Context, status store.ScanStatus, cutoff, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sc := range s.scans {
		if sc.Status != status || status.Finished() || !sc.StartedAt.Before(cutoff) {
			continue
		}
		sc.Status = store.ScanExpired
		sc.FinishedAt = ptr(nowUTC(at))
		s.scans[id] = sc
		n++
	}
	return n, nil
}

func (s *Store) PruneFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sc := range s.scans {
		if sc.Status.Finished() && sc.FinishedAt != nil && sc.FinishedAt.Before(cutoff) {
			delete(s.scans, id)
			n++
		}
	}
	return n, nil
}
