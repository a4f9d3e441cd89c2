package types

// Reasons recorded on every access decision.
const (
	ReasonGranted          = "granted"
	ReasonKeycardScanned   = "keycard_scanned"
	ReasonUnknownKeycard   = "unknown_keycard"
	ReasonDoorNotPermitted = "door_not_permitted"
	ReasonUnknownDoor      = "unknown_door"
)

type CheckRequest struct {
	DoorID    int64  `json:"door_id"`
	RFID      string `json:"rfid"`
	DataPoint string `json:"data_point,omitempty"` // free text from the controller
}

type CheckResponse struct {
	Granted    bool   `json:"granted"`
	Reason     string `json:"reason"`
	DoorID     int64  `json:"door_id"`
	ServerTime string `json:"server_time"`
}

type AllowedResponse struct {
	DoorID int64    `json:"door_id"`
	RFIDs  []string `json:"rfids"`
}

type AccessTime struct {
	ID         int64  `json:"id"`
	RFID       string `json:"rfid"`
	AccessedAt string `json:"accessed_at"`
	LockUserID *int64 `json:"lock_user_id,omitempty"`
	DoorID     *int64 `json:"door_id,omitempty"`
	Granted    bool   `json:"granted"`
	Reason     string `json:"reason"`
	DataPoint  string `json:"data_point,omitempty"`
}

type AccessQuery struct {
	LockUserID int64
	DoorID     int64
	Limit      int
}

type VisitDay struct {
	Day   string `json:"day"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

type VisitChart struct {
	Days  []VisitDay `json:"days"`
	Total int        `json:"total"`
}
