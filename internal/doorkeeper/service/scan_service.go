package service

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
	"github.com/rfidlock/doorkeeper/internal/events"
)

// ScanService drives the staff side of the keycard handshake: start a scan
// for a lock user, then poll it until a controller has read a card.
type ScanService struct {
	deps   Deps
	policy ScanPolicy
}

func NewScanService(d Deps, p ScanPolicy) *ScanService {
	return &ScanService{deps: d.withDefaults(), policy: p.withDefaults()}
}

func (s *ScanService) Start(ctx context.Context, actor store.StaffRecord, lockUserID int64) (types.Scan, error) {
	ctx, span := tracer.Start(ctx, "ScanService.Start")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("doorkeeper.lock_user_id", lockUserID),
		attribute.Int64("doorkeeper.staff_id", actor.ID),
	)

	u, err := s.deps.LockUsers.GetLockUser(ctx, lockUserID)
	if err != nil {
		span.RecordError(err)
		return types.Scan{}, err
	}
	if !canManageAny(actor, u.DoorIDs) {
		span.SetStatus(codes.Error, "forbidden")
		return types.Scan{}, ErrForbidden
	}

	sc, err := s.deps.Scans.CreateScan(ctx, store.ScanRecord{
		LockUserID: u.ID,
		AssignerID: actor.ID,
		StartedAt:  s.deps.now(),
		Status:     store.ScanWaiting,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.Scan{}, err
	}
	span.SetAttributes(attribute.Int64("doorkeeper.scan_id", sc.ID))

	s.deps.Metrics.KeycardScan("started")
	s.deps.Logger.WithFields(log.Fields{
		"scan_id":      sc.ID,
		"lock_user_id": u.ID,
		"staff_id":     actor.ID,
	}).Info("keycard scan started")
	publishScan(ctx, s.deps, sc)

	return scanToAPI(sc, s.policy), nil
}

// Status reports a scan's state. Scans past their deadline are expired here
// so pollers see the timeout without waiting for the reaper.
func (s *ScanService) Status(ctx context.Context, scanID int64) (types.Scan, error) {
	sc, err := s.deps.Scans.GetScan(ctx, scanID)
	if err != nil {
		return types.Scan{}, err
	}
	sc, err = expireIfStale(ctx, s.deps, s.policy, sc)
	if err != nil {
		return types.Scan{}, err
	}
	return scanToAPI(sc, s.policy), nil
}

// stale reports whether an unfinished scan has outlived its deadline.
func stale(p ScanPolicy, sc store.ScanRecord, d Deps) bool {
	age := d.now().Sub(sc.StartedAt)
	switch sc.Status {
	case store.ScanWaiting:
		return age > p.Timeout
	case store.ScanReady:
		return age > p.ReadyTTL
	}
	return false
}

func expireIfStale(ctx context.Context, d Deps, p ScanPolicy, sc store.ScanRecord) (store.ScanRecord, error) {
	if !stale(p, sc, d) {
		return sc, nil
	}
	now := d.now()
	if err := d.Scans.MarkScanExpired(ctx, sc.ID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return sc, err
	}
	sc.Status = store.ScanExpired
	sc.FinishedAt = &now

	d.Metrics.KeycardScan("expired")
	d.Logger.WithField("scan_id", sc.ID).Info("keycard scan expired")
	publishScan(ctx, d, sc)
	return sc, nil
}

func publishScan(ctx context.Context, d Deps, sc store.ScanRecord) {
	ev := events.New(events.KindScan, d.now(), map[string]any{
		"scan_id": sc.ID,
		"status":  sc.Status,
		"rfid":    sc.RFID,
	})
	ev.LockUserID = sc.LockUserID
	if sc.DoorID != nil {
		ev.DoorID = *sc.DoorID
	}
	d.publish(ctx, ev)
}
