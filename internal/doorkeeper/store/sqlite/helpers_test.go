package sqlite_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/rfidlock/doorkeeper/internal/db"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	sqlitestore "github.com/rfidlock/doorkeeper/internal/doorkeeper/store/sqlite"
)

// openTestDB returns a migrated in-memory SQLite connection with the same
// PRAGMAs as production. The shared-cache name keeps the database alive for
// the lifetime of the pool; it is closed when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name := "test_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenDSN(context.Background(), db.MemoryDSN(name))
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestStores returns every sqlite store over a fresh database and writer.
func newTestStores(t *testing.T) (*sqlitestore.Stores, *sql.DB) {
	t.Helper()

	conn := openTestDB(t)
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)
	return sqlitestore.New(conn, w), conn
}

var t0 = time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	stores *sqlitestore.Stores
	conn   *sql.DB
	door   store.DoorRecord
	staff  store.StaffRecord
	user   store.LockUserRecord
}

// newFixture seeds one door, one superuser and one lock user permitted on
// the door.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	st, conn := newTestStores(t)

	door, err := st.Doors.CreateDoor(ctx, store.DoorRecord{Name: "Front", CreatedAt: t0})
	if err != nil {
		t.Fatalf("CreateDoor: %v", err)
	}
	staff, err := st.Staff.CreateStaff(ctx, store.StaffRecord{Username: "admin", PasswordHash: "x", IsSuperuser: true, CreatedAt: t0})
	if err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}
	user, err := st.LockUsers.CreateLockUser(ctx, store.LockUserRecord{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org",
		DoorIDs: []int64{door.ID}, CreatedAt: t0,
	})
	if err != nil {
		t.Fatalf("CreateLockUser: %v", err)
	}
	return fixture{stores: st, conn: conn, door: door, staff: staff, user: user}
}

// readyScan creates a scan for userID and moves it to ready with rfid.
func (f fixture) readyScan(t *testing.T, userID int64, rfid string) store.ScanRecord {
	t.Helper()
	ctx := context.Background()

	sc, err := f.stores.Scans.CreateScan(ctx, store.ScanRecord{LockUserID: userID, AssignerID: f.staff.ID, StartedAt: t0})
	if err != nil {
		t.Fatalf("CreateScan: %v", err)
	}
	if err := f.stores.Scans.MarkScanReady(ctx, sc.ID, rfid, f.door.ID); err != nil {
		t.Fatalf("MarkScanReady: %v", err)
	}
	return sc
}
