package types

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Staff     Staff  `json:"staff"`
}

type Staff struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	IsSuperuser    bool    `json:"is_superuser"`
	ManagedDoorIDs []int64 `json:"managed_door_ids"`
	CreatedAt      string  `json:"created_at"`
}

type StaffInput struct {
	Username       string  `json:"username"`
	Password       string  `json:"password"`
	IsSuperuser    bool    `json:"is_superuser,omitempty"`
	ManagedDoorIDs []int64 `json:"managed_door_ids,omitempty"`
}
