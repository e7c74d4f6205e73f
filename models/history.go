package models

import (
	"time"
)

// HistoryRecord captures a completed session for one participant, written
// when a match is detected.
type HistoryRecord struct {
	ID               string    `json:"id"`
	SessionCode      string    `json:"session_code"`
	ParticipantID    string    `json:"participant_id"`
	ParticipantNames []string  `json:"participant_names"`
	VenueID          string    `json:"venue_id"`
	VenueName        string    `json:"venue_name"`
	VenueAddress     string    `json:"venue_address"`
	VenueLat         float64   `json:"venue_lat"`
	VenueLng         float64   `json:"venue_lng"`
	VenueRating      float64   `json:"venue_rating,omitempty"`
	VenuePhotoRef    string    `json:"venue_photo_ref,omitempty"`
	CompletedAt      time.Time `json:"completed_at"`
}
