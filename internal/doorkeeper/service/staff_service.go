package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

// dummyHash is compared against when the username is unknown so both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("doorkeeper-dummy-password"), bcrypt.DefaultCost)

type StaffService struct {
	deps Deps
	cost int
}

func NewStaffService(d Deps) *StaffService {
	return &StaffService{deps: d.withDefaults(), cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost for new passwords. Tests use
// bcrypt.MinCost.
func (s *StaffService) WithCost(cost int) *StaffService {
	s.cost = cost
	return s
}

func (s *StaffService) Authenticate(ctx context.Context, username, password string) (store.StaffRecord, error) {
	st, err := s.deps.Staff.GetStaffByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return store.StaffRecord{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.StaffRecord{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(password)); err != nil {
		s.deps.Logger.WithField("staff_id", st.ID).Warn("failed login")
		return store.StaffRecord{}, ErrInvalidCredentials
	}
	return st, nil
}

func (s *StaffService) Get(ctx context.Context, id int64) (store.StaffRecord, error) {
	return s.deps.Staff.GetStaff(ctx, id)
}

func (s *StaffService) Create(ctx context.Context, actor store.StaffRecord, in types.StaffInput) (types.Staff, error) {
	if !actor.IsSuperuser {
		return types.Staff{}, ErrForbidden
	}
	username, err := validateStaff(in)
	if err != nil {
		return types.Staff{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return types.Staff{}, err
	}

	st, err := s.deps.Staff.CreateStaff(ctx, store.StaffRecord{
		Username:       username,
		PasswordHash:   string(hash),
		IsSuperuser:    in.IsSuperuser,
		ManagedDoorIDs: in.ManagedDoorIDs,
		CreatedAt:      s.deps.now(),
	})
	if err != nil {
		return types.Staff{}, err
	}
	s.deps.Logger.WithField("staff_id", st.ID).WithField("created_by", actor.ID).Info("staff created")
	return staffToAPI(st), nil
}

func (s *StaffService) CanManageDoor(actor store.StaffRecord, doorID int64) bool {
	return CanManageDoor(actor, doorID)
}

// Describe renders a staff record for API responses.
func (s *StaffService) Describe(st store.StaffRecord) types.Staff {
	return staffToAPI(st)
}
