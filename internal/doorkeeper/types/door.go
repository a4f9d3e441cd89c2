package types

type DoorInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Door struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LastSeenAt  string `json:"last_seen_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}
