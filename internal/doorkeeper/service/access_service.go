package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
	"github.com/rfidlock/doorkeeper/internal/events"
)

const (
	DefaultAccessLimit = 100
	MaxAccessLimit     = 1000
	DefaultChartDays   = 30
	MaxChartDays       = 366
)

type AccessService struct {
	deps   Deps
	policy ScanPolicy
}

func NewAccessService(d Deps, p ScanPolicy) *AccessService {
	return &AccessService{deps: d.withDefaults(), policy: p.withDefaults()}
}

// Check decides whether rfid opens the door and logs the decision.
//
// While a staff member has a scan waiting, the next card read at any known
// door is captured for that scan instead of being checked. A waiting scan
// past its timeout is expired and the card is checked normally.
func (s *AccessService) Check(ctx context.Context, req types.CheckRequest) (types.CheckResponse, error) {
	ctx, span := tracer.Start(ctx, "AccessService.Check")
	defer span.End()

	rfid, err := normalizeRFID(req.RFID)
	if err != nil {
		return types.CheckResponse{}, err
	}
	if req.DoorID <= 0 {
		return types.CheckResponse{}, ErrInvalidDoorID
	}
	span.SetAttributes(attribute.Int64("doorkeeper.door_id", req.DoorID))

	now := s.deps.now()
	rec := store.AccessRecord{
		RFID:       rfid,
		AccessedAt: now,
		DataPoint:  strings.TrimSpace(req.DataPoint),
	}

	door, err := s.deps.Doors.GetDoor(ctx, req.DoorID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec.Reason = types.ReasonUnknownDoor
		return s.finish(ctx, req.DoorID, rec)
	case err != nil:
		return types.CheckResponse{}, err
	}
	rec.DoorID = &door.ID
	markDoorSeen(ctx, s.deps, door.ID)

	captured, err := s.interceptScan(ctx, rfid, door.ID)
	if err != nil {
		return types.CheckResponse{}, err
	}
	if captured != nil {
		rec.Reason = types.ReasonKeycardScanned
		rec.LockUserID = &captured.LockUserID
		return s.finish(ctx, door.ID, rec)
	}

	k, err := s.deps.Keycards.FindActiveByRFID(ctx, rfid)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec.Reason = types.ReasonUnknownKeycard
		return s.finish(ctx, door.ID, rec)
	case err != nil:
		return types.CheckResponse{}, err
	}
	rec.LockUserID = &k.LockUserID

	u, err := s.deps.LockUsers.GetLockUser(ctx, k.LockUserID)
	if err != nil {
		return types.CheckResponse{}, err
	}
	if slices.Contains(u.DoorIDs, door.ID) {
		rec.Granted = true
		rec.Reason = types.ReasonGranted
	} else {
		rec.Reason = types.ReasonDoorNotPermitted
	}
	return s.finish(ctx, door.ID, rec)
}

// interceptScan hands rfid to the latest waiting scan. It returns nil when
// there is no live scan to capture the card.
func (s *AccessService) interceptScan(ctx context.Context, rfid string, doorID int64) (*store.ScanRecord, error) {
	sc, err := s.deps.Scans.LatestWaiting(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sc, err = expireIfStale(ctx, s.deps, s.policy, sc)
	if err != nil {
		return nil, err
	}
	if sc.Status != store.ScanWaiting {
		return nil, nil
	}

	err = s.deps.Scans.MarkScanReady(ctx, sc.ID, rfid, doorID)
	if errors.Is(err, store.ErrScanNotReady) || errors.Is(err, store.ErrNotFound) {
		// Lost a race with another reader or the reaper.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sc.Status = store.ScanReady
	sc.RFID = rfid
	sc.DoorID = &doorID

	s.deps.Metrics.KeycardScan("ready")
	s.deps.Logger.WithFields(log.Fields{
		"scan_id":      sc.ID,
		"lock_user_id": sc.LockUserID,
		"door_id":      doorID,
	}).Info("keycard scan captured")
	publishScan(ctx, s.deps, sc)
	return &sc, nil
}

// finish records the decision and fans it out. The audit write is
// best-effort: the controller still gets its answer if it fails.
func (s *AccessService) finish(ctx context.Context, doorID int64, rec store.AccessRecord) (types.CheckResponse, error) {
	if err := s.deps.Access.RecordAccess(ctx, rec); err != nil {
		s.deps.Logger.WithError(err).WithField("door_id", doorID).Error("record access failed")
	}

	s.deps.Metrics.AccessCheck(rec.Reason)

	ev := events.New(events.KindAccess, rec.AccessedAt, map[string]any{
		"rfid":    rec.RFID,
		"granted": rec.Granted,
		"reason":  rec.Reason,
	})
	ev.DoorID = doorID
	if rec.LockUserID != nil {
		ev.LockUserID = *rec.LockUserID
	}
	s.deps.publish(ctx, ev)

	s.deps.Logger.WithFields(log.Fields{
		"door_id": doorID,
		"granted": rec.Granted,
		"reason":  rec.Reason,
	}).Debug("access checked")

	return types.CheckResponse{
		Granted:    rec.Granted,
		Reason:     rec.Reason,
		DoorID:     doorID,
		ServerTime: formatTime(rec.AccessedAt),
	}, nil
}

func (s *AccessService) List(ctx context.Context, q types.AccessQuery) ([]types.AccessTime, error) {
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = DefaultAccessLimit
	case limit > MaxAccessLimit:
		limit = MaxAccessLimit
	}

	recs, err := s.deps.Access.ListAccess(ctx, store.AccessFilter{
		LockUserID: q.LockUserID,
		DoorID:     q.DoorID,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.AccessTime, 0, len(recs))
	for _, a := range recs {
		out = append(out, accessToAPI(a))
	}
	return out, nil
}

// VisitChart returns granted visits per UTC day for the last days days,
// today included, with empty days present as zero.
func (s *AccessService) VisitChart(ctx context.Context, days int) (types.VisitChart, error) {
	switch {
	case days <= 0:
		days = DefaultChartDays
	case days > MaxChartDays:
		days = MaxChartDays
	}

	today := s.deps.now().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	counts, err := s.deps.Access.VisitCounts(ctx, since)
	if err != nil {
		return types.VisitChart{}, err
	}
	byDay := make(map[string]int, len(counts))
	for _, c := range counts {
		byDay[c.Day.UTC().Format(dateLayout)] = c.Count
	}

	out := types.VisitChart{Days: make([]types.VisitDay, 0, days)}
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		out.Days = append(out.Days, types.VisitDay{Day: key, Count: byDay[key]})
		out.Total += byDay[key]
	}
	return out, nil
}
