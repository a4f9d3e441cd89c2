package types

type Scan struct {
	ID         int64  `json:"id"`
	LockUserID int64  `json:"lock_user_id"`
	AssignerID int64  `json:"assigner_id"`
	Status     string `json:"status"`
	RFID       string `json:"rfid,omitempty"`
	DoorID     *int64 `json:"door_id,omitempty"`
	StartedAt  string `json:"started_at"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}
