package domain

import "time"

// Store is a business location owned by a user. Stores are managed elsewhere
// and are read-only here.
type Store struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"owner_id"`
	DisplayName        string    `json:"display_name"`
	ExternalLocationID string    `json:"external_location_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// IsLinked reports whether the store is mapped to a location in the external directory.
func (s Store) IsLinked() bool {
	return s.ExternalLocationID != ""
}
