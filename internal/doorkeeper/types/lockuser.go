package types

// LockUserInput is the body of create and save requests. The keycard
// fields only apply to save.
type LockUserInput struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Address     string  `json:"address,omitempty"`
	PhoneNumber string  `json:"phone_number,omitempty"`
	Birthdate   string  `json:"birthdate,omitempty"` // YYYY-MM-DD
	DoorIDs     []int64 `json:"door_ids"`

	AssignScanID             int64 `json:"assign_scan_id,omitempty"`
	RevokeCurrent            bool  `json:"revoke_current,omitempty"`
	DeactivateCurrentKeycard bool  `json:"deactivate_current_keycard,omitempty"`
}

type LockUser struct {
	ID          int64   `json:"id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Address     string  `json:"address"`
	PhoneNumber string  `json:"phone_number"`
	Birthdate   string  `json:"birthdate,omitempty"`
	DoorIDs     []int64 `json:"door_ids"`
	Active      bool    `json:"active"`
	CurrentRFID string  `json:"current_rfid,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type LockUserDetail struct {
	LockUser
	CurrentKeycard *Keycard    `json:"current_keycard,omitempty"`
	PastKeycards   []Keycard   `json:"past_keycards"`
	LastAccess     *AccessTime `json:"last_access,omitempty"`
}

type LockUserQuery struct {
	DoorID int64
	Active *bool
}

type Keycard struct {
	ID         int64  `json:"id"`
	RFID       string `json:"rfid"`
	LockUserID int64  `json:"lock_user_id"`
	CreatedAt  string `json:"created_at"`
	RevokedAt  string `json:"revoked_at,omitempty"`
	AssignerID int64  `json:"assigner_id"`
	RevokerID  *int64 `json:"revoker_id,omitempty"`
}
