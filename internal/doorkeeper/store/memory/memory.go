// Package memory is an in-process implementation of every doorkeeper
// store interface. It is intended for tests and the dev "memory" store mode.
package memory

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
)

// Store holds all entities behind one mutex so that multi-entity operations
// (keycard assignment) are atomic, matching the sqlite transaction.
type Store struct {
	mu sync.RWMutex

	doors     map[int64]store.DoorRecord
	lockUsers map[int64]store.LockUserRecord
	keycards  []store.KeycardRecord
	scans     map[int64]store.ScanRecord
	access    []store.AccessRecord
	staff     map[int64]store.StaffRecord

	nextDoor, nextUser, nextKeycard, nextScan, nextAccess, nextStaff int64
}

var (
	_ store.DoorStore     = (*Store)(nil)
	_ store.LockUserStore = (*Store)(nil)
	_ store.KeycardStore  = (*Store)(nil)
	_ store.ScanStore     = (*Store)(nil)
	_ store.AccessStore   = (*Store)(nil)
	_ store.StaffStore    = (*Store)(nil)
)

func New() *Store {
	return &Store{
		doors:     make(map[int64]store.DoorRecord),
		lockUsers: make(map[int64]store.LockUserRecord),
		scans:     make(map[int64]store.ScanRecord),
		staff:     make(map[int64]store.StaffRecord),
	}
}

func nowUTC(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func sortedIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func sameFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func ptr[T any](v T) *T { return &v }
