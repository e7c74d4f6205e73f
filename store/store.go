package store

import (
	"context"

	"meetpoint/models"
)

// Store is the persistence boundary for session state. Implementations must
// key everything by the opaque session code / participant id / venue id
// strings carried in the models.
type Store interface {
	// GetSession loads the full session aggregate (participants, venues,
	// votes). Returns status.ErrNotFound for unknown codes.
	GetSession(ctx context.Context, code string) (*models.Session, error)

	UpsertSession(ctx context.Context, session *models.Session) error
	UpsertParticipant(ctx context.Context, code string, p *models.Participant) error
	DeleteParticipant(ctx context.Context, code, participantID string) error

	// ReplaceVenues swaps the whole candidate set for a session. Votes are
	// deliberately left untouched.
	ReplaceVenues(ctx context.Context, code string, venues []*models.Venue) error

	UpsertVote(ctx context.Context, code string, vote *models.Vote) error
	DeleteVotesByParticipant(ctx context.Context, code, participantID string) error

	// DeleteSessionCascade removes the session and all child records except
	// history, which outlives the session.
	DeleteSessionCascade(ctx context.Context, code string) error

	BlockVenue(ctx context.Context, code string, blocked *models.BlockedVenue) error
	BlockedVenueIDs(ctx context.Context, code string) (map[string]bool, error)

	InsertHistory(ctx context.Context, records []*models.HistoryRecord) error
	HistoryByParticipant(ctx context.Context, participantID string) ([]*models.HistoryRecord, error)
}
