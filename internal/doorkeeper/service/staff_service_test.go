package service_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/service"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

func TestStaffService_CreateAndAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.staffSvc.WithCost(bcrypt.MinCost)

	created, err := svc.Create(ctx, e.super, types.StaffInput{
		Username: "nightshift", Password: "correct horse", ManagedDoorIDs: []int64{e.back.ID},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.IsSuperuser || len(created.ManagedDoorIDs) != 1 {
		t.Errorf("unexpected staff: %+v", created)
	}

	st, err := svc.Authenticate(ctx, "nightshift", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if st.ID != created.ID {
		t.Errorf("expected staff %d, got %d", created.ID, st.ID)
	}
	if !svc.CanManageDoor(st, e.back.ID) || svc.CanManageDoor(st, e.front.ID) {
		t.Error("unexpected door permissions")
	}

	if _, err := svc.Authenticate(ctx, "nightshift", "wrong"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "whatever"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestStaffService_CreateRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.staffSvc.WithCost(bcrypt.MinCost)

	cases := []struct {
		name  string
		actor store.StaffRecord
		in    types.StaffInput
		want  error
	}{
		{"not superuser", e.manager, types.StaffInput{Username: "x", Password: "longenough"}, service.ErrForbidden},
		{"short password", e.super, types.StaffInput{Username: "x", Password: "short"}, service.ErrInvalidInput},
		{"bad username", e.super, types.StaffInput{Username: "has space", Password: "longenough"}, service.ErrInvalidInput},
		{"taken username", e.super, types.StaffInput{Username: "root", Password: "longenough"}, store.ErrConflict},
		{"unknown door", e.super, types.StaffInput{Username: "y", Password: "longenough", ManagedDoorIDs: []int64{999}}, store.ErrNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, c.actor, c.in); !errors.Is(err, c.want) {
				t.Errorf("expected %v, got %v", c.want, err)
			}
		})
	}
}
