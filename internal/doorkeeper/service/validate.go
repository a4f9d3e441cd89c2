package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

var (
	rfidPattern     = regexp.MustCompile(`^\w{10}$`)
	usernamePattern = regexp.MustCompile(`^[\w.@+-]{1,150}$`)
)

const dateLayout = "2006-01-02"

func ValidRFID(rfid string) bool {
	return rfidPattern.MatchString(rfid)
}

func normalizeRFID(rfid string) (string, error) {
	rfid = strings.TrimSpace(rfid)
	if !ValidRFID(rfid) {
		return "", ErrInvalidRFID
	}
	return rfid, nil
}

func validName(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	return s, n >= 1 && n <= max
}

func validateDoor(in types.DoorInput) (store.DoorRecord, error) {
	name, ok := validName(in.Name, 50)
	if !ok {
		return store.DoorRecord{}, ErrInvalidName
	}
	return store.DoorRecord{Name: name, Description: strings.TrimSpace(in.Description)}, nil
}

func validateLockUser(in types.LockUserInput) (store.LockUserRecord, error) {
	var rec store.LockUserRecord
	var ok bool

	if rec.FirstName, ok = validName(in.FirstName, 50); !ok {
		return rec, fmt.Errorf("first_name: %w", ErrInvalidName)
	}
	if rec.LastName, ok = validName(in.LastName, 50); !ok {
		return rec, fmt.Errorf("last_name: %w", ErrInvalidName)
	}

	email := strings.TrimSpace(in.Email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || utf8.RuneCountInString(email) > 254 {
		return rec, ErrInvalidEmail
	}
	rec.Email = email

	rec.Address = strings.TrimSpace(in.Address)
	if utf8.RuneCountInString(rec.Address) > 100 {
		return rec, fmt.Errorf("%w: address is longer than 100 characters", ErrInvalidInput)
	}
	rec.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if utf8.RuneCountInString(rec.PhoneNumber) > 20 {
		return rec, fmt.Errorf("%w: phone_number is longer than 20 characters", ErrInvalidInput)
	}

	if b := strings.TrimSpace(in.Birthdate); b != "" {
		t, err := time.Parse(dateLayout, b)
		if err != nil {
			return rec, fmt.Errorf("%w: birthdate must be YYYY-MM-DD", ErrInvalidInput)
		}
		rec.Birthdate = &t
	}

	rec.DoorIDs = slices.Clone(in.DoorIDs)
	slices.Sort(rec.DoorIDs)
	rec.DoorIDs = slices.Compact(rec.DoorIDs)
	for _, id := range rec.DoorIDs {
		if id <= 0 {
			return rec, fmt.Errorf("%w: door id %d", ErrInvalidInput, id)
		}
	}
	return rec, nil
}

func validateStaff(in types.StaffInput) (string, error) {
	username := strings.TrimSpace(in.Username)
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("%w: username must be 1 to 150 letters, digits or .@+-_", ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Password) < 8 {
		return "", fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(in.Password) > 72 {
		return "", fmt.Errorf("%w: password must be at most 72 bytes", ErrInvalidInput)
	}
	return username, nil
}
