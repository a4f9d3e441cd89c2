package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation (door name, email, username).
	ErrConflict = errors.New("already exists")

	ErrKeycardActive = errors.New("lock user already has an active keycard")
	ErrRFIDInUse     = errors.New("rfid is active on another lock user")
	ErrScanNotReady  = errors.New("scan is not ready to assign")
)
