package models

import (
	"time"
)

// Vote is keyed by (ParticipantID, VenueID); a later cast for the same
// pair replaces the earlier one.
type Vote struct {
	ParticipantID string    `json:"participant_id"`
	VenueID       string    `json:"venue_id"`
	Approved      bool      `json:"approved"`
	CastAt        time.Time `json:"cast_at"`
}

type BlockedVenue struct {
	ParticipantID string    `json:"participant_id"`
	VenueID       string    `json:"venue_id"`
	VenueName     string    `json:"venue_name"`
	BlockedAt     time.Time `json:"blocked_at"`
}
