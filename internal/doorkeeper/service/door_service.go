package service

import (
	"context"
	"errors"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

type DoorService struct {
	deps Deps
}

func NewDoorService(d Deps) *DoorService {
	return &DoorService{deps: d.withDefaults()}
}

func (s *DoorService) Create(ctx context.Context, actor store.StaffRecord, in types.DoorInput) (types.Door, error) {
	if !actor.IsSuperuser {
		return types.Door{}, ErrForbidden
	}
	rec, err := validateDoor(in)
	if err != nil {
		return types.Door{}, err
	}
	rec.CreatedAt = s.deps.now()

	d, err := s.deps.Doors.CreateDoor(ctx, rec)
	if err != nil {
		return types.Door{}, err
	}
	s.deps.Logger.WithField("door_id", d.ID).WithField("staff_id", actor.ID).Info("door created")
	return doorToAPI(d), nil
}

func (s *DoorService) Update(ctx context.Context, actor store.StaffRecord, id int64, in types.DoorInput) (types.Door, error) {
	if !actor.IsSuperuser {
		return types.Door{}, ErrForbidden
	}
	rec, err := validateDoor(in)
	if err != nil {
		return types.Door{}, err
	}
	rec.ID = id
	rec.UpdatedAt = s.deps.now()

	d, err := s.deps.Doors.UpdateDoor(ctx, rec)
	if err != nil {
		return types.Door{}, err
	}
	return doorToAPI(d), nil
}

func (s *DoorService) Get(ctx context.Context, id int64) (types.Door, error) {
	d, err := s.deps.Doors.GetDoor(ctx, id)
	if err != nil {
		return types.Door{}, err
	}
	return doorToAPI(d), nil
}

func (s *DoorService) List(ctx context.Context) ([]types.Door, error) {
	recs, err := s.deps.Doors.ListDoors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Door, 0, len(recs))
	for _, d := range recs {
		out = append(out, doorToAPI(d))
	}
	return out, nil
}

// AllowedRFIDs is polled by door controllers, so it doubles as the door's
// liveness signal.
func (s *DoorService) AllowedRFIDs(ctx context.Context, doorID int64) (types.AllowedResponse, error) {
	if doorID <= 0 {
		return types.AllowedResponse{}, ErrInvalidDoorID
	}
	rfids, err := s.deps.Doors.AllowedRFIDs(ctx, doorID)
	if err != nil {
		return types.AllowedResponse{}, err
	}
	s.markSeen(ctx, doorID)

	if rfids == nil {
		rfids = []string{}
	}
	return types.AllowedResponse{DoorID: doorID, RFIDs: rfids}, nil
}

func (s *DoorService) markSeen(ctx context.Context, doorID int64) {
	markDoorSeen(ctx, s.deps, doorID)
}

func markDoorSeen(ctx context.Context, d Deps, doorID int64) {
	err := d.Doors.MarkDoorSeen(ctx, doorID, d.now())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		d.Logger.WithError(err).WithField("door_id", doorID).Warn("mark door seen failed")
	}
}
