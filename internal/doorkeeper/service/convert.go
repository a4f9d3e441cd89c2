package service

import (
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func doorToAPI(d store.DoorRecord) types.Door {
	return types.Door{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		LastSeenAt:  formatOptional(d.LastSeenAt),
		CreatedAt:   formatTime(d.CreatedAt),
		UpdatedAt:   formatTime(d.UpdatedAt),
	}
}

func lockUserToAPI(u store.LockUserRecord, active *store.KeycardRecord) types.LockUser {
	out := types.LockUser{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Address:     u.Address,
		PhoneNumber: u.PhoneNumber,
		DoorIDs:     u.DoorIDs,
		CreatedAt:   formatTime(u.CreatedAt),
		UpdatedAt:   formatTime(u.UpdatedAt),
	}
	if out.DoorIDs == nil {
		out.DoorIDs = []int64{}
	}
	if u.Birthdate != nil {
		out.Birthdate = u.Birthdate.Format(dateLayout)
	}
	if active != nil {
		out.Active = true
		out.CurrentRFID = active.RFID
	}
	return out
}

func keycardToAPI(k store.KeycardRecord) types.Keycard {
	return types.Keycard{
		ID:         k.ID,
		RFID:       k.RFID,
		LockUserID: k.LockUserID,
		CreatedAt:  formatTime(k.CreatedAt),
		RevokedAt:  formatOptional(k.RevokedAt),
		AssignerID: k.AssignerID,
		RevokerID:  k.RevokerID,
	}
}

func accessToAPI(a store.AccessRecord) types.AccessTime {
	return types.AccessTime{
		ID:         a.ID,
		RFID:       a.RFID,
		AccessedAt: formatTime(a.AccessedAt),
		LockUserID: a.LockUserID,
		DoorID:     a.DoorID,
		Granted:    a.Granted,
		Reason:     a.Reason,
		DataPoint:  a.DataPoint,
	}
}

func staffToAPI(s store.StaffRecord) types.Staff {
	out := types.Staff{
		ID:             s.ID,
		Username:       s.Username,
		IsSuperuser:    s.IsSuperuser,
		ManagedDoorIDs: s.ManagedDoorIDs,
		CreatedAt:      formatTime(s.CreatedAt),
	}
	if out.ManagedDoorIDs == nil {
		out.ManagedDoorIDs = []int64{}
	}
	return out
}

func scanToAPI(sc store.ScanRecord, p ScanPolicy) types.Scan {
	out := types.Scan{
		ID:         sc.ID,
		LockUserID: sc.LockUserID,
		AssignerID: sc.AssignerID,
		Status:     string(sc.Status),
		RFID:       sc.RFID,
		DoorID:     sc.DoorID,
		StartedAt:  formatTime(sc.StartedAt),
		FinishedAt: formatOptional(sc.FinishedAt),
	}
	switch sc.Status {
	case store.ScanWaiting:
		out.ExpiresAt = formatTime(sc.StartedAt.Add(p.Timeout))
	case store.ScanReady:
		out.ExpiresAt = formatTime(sc.StartedAt.Add(p.ReadyTTL))
	}
	return out
}
