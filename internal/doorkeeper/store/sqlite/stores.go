package sqlite

import (
	"database/sql"

	dbpkg "github.com/rfidlock/doorkeeper/internal/db"
)

// Stores bundles every sqlite-backed store over one connection and writer.
type Stores struct {
	Doors     *DoorStore
	LockUsers *LockUserStore
	Keycards  *KeycardStore
	Scans     *ScanStore
	Access    *AccessStore
	Staff     *StaffStore
}

func New(db *sql.DB, writer *dbpkg.Worker) *Stores {
	return &Stores{
		Doors:     NewDoorStore(db, writer),
		LockUsers: NewLockUserStore(db, writer),
		Keycards:  NewKeycardStore(db, writer),
		Scans:     NewScanStore(db, writer),
		Access:    NewAccessStore(db, writer),
		Staff:     NewStaffStore(db, writer),
	}
}
