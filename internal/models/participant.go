package models

import "time"

// Participant is a connected student with a self-asserted display name.
type Participant struct {
	Name     string    `json:"name"`
	ConnID   string    `json:"-"`
	JoinedAt time.Time `json:"joinedAt"`
}
