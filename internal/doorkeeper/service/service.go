// Package service holds the doorkeeper business rules: door management,
// lock users and their keycards, the scan handshake, access checks and staff
// accounts. Handlers call into it; it talks to the store interfaces only.
package service

import (
	"context"
	"errors"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/events"
	"github.com/rfidlock/doorkeeper/internal/metrics"
)

var (
	ErrInvalidRFID   = errors.New("rfid must be exactly 10 letters, digits or underscores")
	ErrInvalidName   = errors.New("name must be 1 to 50 characters")
	ErrInvalidEmail  = errors.New("email is not a valid address")
	ErrInvalidDoorID = errors.New("door_id is required")
	ErrInvalidInput  = errors.New("invalid input")

	ErrForbidden          = errors.New("not permitted")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrScanExpired        = errors.New("scan has expired")
)

var tracer = otel.Tracer("github.com/rfidlock/doorkeeper/internal/doorkeeper/service")

// Stores is the set of persistence interfaces the services need. Both the
// sqlite and memory implementations satisfy all of them.
type Stores struct {
	Doors     store.DoorStore
	LockUsers store.LockUserStore
	Keycards  store.KeycardStore
	Scans     store.ScanStore
	Access    store.AccessStore
	Staff     store.StaffStore
}

// Deps carries the collaborators shared by every service. Zero values are
// replaced with no-op implementations.
type Deps struct {
	Stores
	Logger  log.FieldLogger
	Events  events.Publisher
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// ScanPolicy bounds the keycard scan handshake.
type ScanPolicy struct {
	// Timeout is how long a waiting scan accepts a card. Defaults to 2m.
	Timeout time.Duration
	// ReadyTTL is how long a ready scan may wait to be assigned by a save.
	// Defaults to 15m.
	ReadyTTL time.Duration
}

func (p ScanPolicy) withDefaults() ScanPolicy {
	if p.Timeout <= 0 {
		p.Timeout = 2 * time.Minute
	}
	if p.ReadyTTL <= 0 {
		p.ReadyTTL = 15 * time.Minute
	}
	if p.ReadyTTL < p.Timeout {
		p.ReadyTTL = p.Timeout
	}
	return p
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		d.Logger = l
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func (d Deps) now() time.Time { return d.Now().UTC() }

// publish is best-effort: a broker outage must not fail the request.
func (d Deps) publish(ctx context.Context, ev events.Event) {
	if err := d.Events.Publish(ctx, ev); err != nil {
		d.Logger.WithError(err).WithField("kind", ev.Kind).Warn("event publish failed")
	}
}

func (d Deps) publishAllowedChanged(ctx context.Context, doorIDs []int64) {
	now := d.now()
	for _, id := range doorIDs {
		ev := events.New(events.KindDoorAllowed, now, nil)
		ev.DoorID = id
		d.publish(ctx, ev)
	}
}

// CanManageDoor reports whether staff may administer users of a door.
func CanManageDoor(actor store.StaffRecord, doorID int64) bool {
	if actor.IsSuperuser {
		return true
	}
	for _, id := range actor.ManagedDoorIDs {
		if id == doorID {
			return true
		}
	}
	return false
}

func canManageAny(actor store.StaffRecord, doorIDs []int64) bool {
	if actor.IsSuperuser {
		return true
	}
	for _, id := range doorIDs {
		if CanManageDoor(actor, id) {
			return true
		}
	}
	return false
}

func canManageAll(actor store.StaffRecord, doorIDs []int64) bool {
	for _, id := range doorIDs {
		if !CanManageDoor(actor, id) {
			return false
		}
	}
	return true
}
