package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
	"github.com/rfidlock/doorkeeper/internal/events"
)

// LockUserService manages lock users and the keycards bound to them.
type LockUserService struct {
	deps   Deps
	policy ScanPolicy
}

func NewLockUserService(d Deps, p ScanPolicy) *LockUserService {
	return &LockUserService{deps: d.withDefaults(), policy: p.withDefaults()}
}

// Create adds a lock user. Staff who are not superusers may only grant doors
// they manage.
func (s *LockUserService) Create(ctx context.Context, actor store.StaffRecord, in types.LockUserInput) (types.LockUserDetail, error) {
	rec, err := validateLockUser(in)
	if err != nil {
		return types.LockUserDetail{}, err
	}
	if !canManageAll(actor, rec.DoorIDs) {
		return types.LockUserDetail{}, ErrForbidden
	}
	rec.CreatedAt = s.deps.now()

	u, err := s.deps.LockUsers.CreateLockUser(ctx, rec)
	if err != nil {
		return types.LockUserDetail{}, err
	}
	s.deps.Logger.WithFields(log.Fields{"lock_user_id": u.ID, "staff_id": actor.ID}).Info("lock user created")
	return s.detail(ctx, u)
}

// Save updates a lock user and applies the keycard side effects of the save:
//
//  1. AssignScanID consumes a ready scan for this user and issues its RFID
//     as the new keycard. An existing active keycard must be replaced
//     explicitly with RevokeCurrent.
//  2. DeactivateCurrentKeycard, or leaving the user without doors, revokes
//     whatever keycard is active after step 1.
//
// The profile update and both keycard steps commit in one store call, so a
// rejected save leaves the user unchanged.
func (s *LockUserService) Save(ctx context.Context, actor store.StaffRecord, id int64, in types.LockUserInput) (types.LockUserDetail, error) {
	ctx, span := tracer.Start(ctx, "LockUserService.Save")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("doorkeeper.lock_user_id", id),
		attribute.Int64("doorkeeper.staff_id", actor.ID),
		attribute.Bool("doorkeeper.assign", in.AssignScanID != 0),
	)

	detail, err := s.save(ctx, actor, id, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return detail, err
}

func (s *LockUserService) save(ctx context.Context, actor store.StaffRecord, id int64, in types.LockUserInput) (types.LockUserDetail, error) {
	rec, err := validateLockUser(in)
	if err != nil {
		return types.LockUserDetail{}, err
	}

	prev, err := s.deps.LockUsers.GetLockUser(ctx, id)
	if err != nil {
		return types.LockUserDetail{}, err
	}
	changed := symmetricDiff(prev.DoorIDs, rec.DoorIDs)
	if !canManageAll(actor, changed) {
		return types.LockUserDetail{}, ErrForbidden
	}
	if !canManageAny(actor, union(prev.DoorIDs, rec.DoorIDs)) {
		return types.LockUserDetail{}, ErrForbidden
	}

	active, err := s.activeKeycard(ctx, id)
	if err != nil {
		return types.LockUserDetail{}, err
	}
	if in.AssignScanID != 0 {
		if err := s.checkAssignable(ctx, id, in, active); err != nil {
			return types.LockUserDetail{}, err
		}
	}

	now := s.deps.now()
	rec.ID = id
	rec.UpdatedAt = now
	p := store.SaveParams{
		User:         rec,
		RevokeActive: in.DeactivateCurrentKeycard || len(rec.DoorIDs) == 0,
		RevokerID:    actor.ID,
		At:           now,
	}
	if in.AssignScanID != 0 {
		p.Assign = &store.AssignParams{
			ScanID:      in.AssignScanID,
			LockUserID:  id,
			RevokePrior: in.RevokeCurrent,
			RevokerID:   actor.ID,
			At:          now,
		}
	}

	res, err := s.deps.LockUsers.SaveLockUser(ctx, p)
	if err != nil {
		return types.LockUserDetail{}, fmt.Errorf("save lock user: %w", err)
	}

	// Reported in the order the transaction applied them.
	if res.Replaced != nil {
		s.keycardRevoked(ctx, actor, *res.Replaced)
	}
	if k := res.Issued; k != nil {
		s.deps.Metrics.KeycardIssued()
		s.deps.Metrics.KeycardScan("consumed")
		s.deps.Logger.WithFields(log.Fields{
			"lock_user_id": id,
			"keycard_id":   k.ID,
			"staff_id":     actor.ID,
		}).Info("keycard issued")
		s.publishKeycard(ctx, "issued", *k)
	}
	if res.Deactivated != nil {
		s.keycardRevoked(ctx, actor, *res.Deactivated)
	}

	switch {
	case res.Issued != nil || res.Deactivated != nil:
		s.deps.publishAllowedChanged(ctx, union(prev.DoorIDs, rec.DoorIDs))
	case len(changed) > 0 && active != nil:
		s.deps.publishAllowedChanged(ctx, changed)
	}

	return s.detail(ctx, res.User)
}

// checkAssignable rejects a save whose scan cannot be consumed, expiring the
// scan when its ready window has passed.
func (s *LockUserService) checkAssignable(ctx context.Context, userID int64, in types.LockUserInput, active *store.KeycardRecord) error {
	sc, err := s.deps.Scans.GetScan(ctx, in.AssignScanID)
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrScanNotReady
	}
	if err != nil {
		return err
	}
	if sc.LockUserID != userID {
		return store.ErrScanNotReady
	}

	sc, err = expireIfStale(ctx, s.deps, s.policy, sc)
	if err != nil {
		return err
	}
	switch sc.Status {
	case store.ScanExpired:
		return ErrScanExpired
	case store.ScanReady:
	default:
		return store.ErrScanNotReady
	}

	if active != nil && !in.RevokeCurrent {
		return store.ErrKeycardActive
	}
	if other, err := s.deps.Keycards.FindActiveByRFID(ctx, sc.RFID); err == nil && other.LockUserID != userID {
		return store.ErrRFIDInUse
	}
	return nil
}

func (s *LockUserService) activeKeycard(ctx context.Context, userID int64) (*store.KeycardRecord, error) {
	k, err := s.deps.Keycards.ActiveKeycard(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *LockUserService) keycardRevoked(ctx context.Context, actor store.StaffRecord, k store.KeycardRecord) {
	s.deps.Metrics.KeycardRevoked()
	s.deps.Logger.WithFields(log.Fields{
		"lock_user_id": k.LockUserID,
		"keycard_id":   k.ID,
		"staff_id":     actor.ID,
	}).Info("keycard revoked")
	s.publishKeycard(ctx, "revoked", k)
}

func (s *LockUserService) publishKeycard(ctx context.Context, action string, k store.KeycardRecord) {
	ev := events.New(events.KindKeycard, s.deps.now(), map[string]any{
		"action":     action,
		"keycard_id": k.ID,
		"rfid":       k.RFID,
	})
	ev.LockUserID = k.LockUserID
	s.deps.publish(ctx, ev)
}

func (s *LockUserService) Get(ctx context.Context, id int64) (types.LockUserDetail, error) {
	u, err := s.deps.LockUsers.GetLockUser(ctx, id)
	if err != nil {
		return types.LockUserDetail{}, err
	}
	return s.detail(ctx, u)
}

func (s *LockUserService) detail(ctx context.Context, u store.LockUserRecord) (types.LockUserDetail, error) {
	cards, err := s.deps.Keycards.ListKeycards(ctx, u.ID)
	if err != nil {
		return types.LockUserDetail{}, err
	}

	out := types.LockUserDetail{PastKeycards: []types.Keycard{}}
	var active *store.KeycardRecord
	for i := range cards {
		if cards[i].Active() {
			active = &cards[i]
			k := keycardToAPI(cards[i])
			out.CurrentKeycard = &k
			continue
		}
		out.PastKeycards = append(out.PastKeycards, keycardToAPI(cards[i]))
	}
	out.LockUser = lockUserToAPI(u, active)

	last, err := s.deps.Access.LastAccess(ctx, u.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return types.LockUserDetail{}, err
	default:
		a := accessToAPI(last)
		out.LastAccess = &a
	}
	return out, nil
}

func (s *LockUserService) List(ctx context.Context, q types.LockUserQuery) ([]types.LockUser, error) {
	recs, err := s.deps.LockUsers.ListLockUsers(ctx, store.LockUserFilter{DoorID: q.DoorID, Active: q.Active})
	if err != nil {
		return nil, err
	}
	out := make([]types.LockUser, 0, len(recs))
	for _, u := range recs {
		active, err := s.activeKeycard(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, lockUserToAPI(u, active))
	}
	return out, nil
}

// symmetricDiff returns the ids present in exactly one of a and b, sorted.
func symmetricDiff(a, b []int64) []int64 {
	var out []int64
	for _, id := range a {
		if !slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !slices.Contains(a, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func union(a, b []int64) []int64 {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}
