package store

import (
	"context"
	"fmt"
	"sync"

	"meetpoint/internal/status"
	"meetpoint/models"
)

// Memory is an in-process Store used by tests and local development.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	blocked  map[string][]*models.BlockedVenue
	history  []*models.HistoryRecord
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*models.Session),
		blocked:  make(map[string][]*models.BlockedVenue),
	}
}

func (m *Memory) GetSession(_ context.Context, code string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[code]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", code, status.ErrNotFound)
	}
	return sess.Clone(), nil
}

func (m *Memory) UpsertSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.Code] = session.Clone()
	return nil
}

func (m *Memory) UpsertParticipant(_ context.Context, code string, p *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return fmt.Errorf("session %s: %w", code, status.ErrNotFound)
	}
	cp := *p
	if p.Location != nil {
		loc := *p.Location
		cp.Location = &loc
	}
	for i, existing := range sess.Participants {
		if existing.ID == p.ID {
			sess.Participants[i] = &cp
			return nil
		}
	}
	sess.Participants = append(sess.Participants, &cp)
	return nil
}

func (m *Memory) DeleteParticipant(_ context.Context, code, participantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return fmt.Errorf("session %s: %w", code, status.ErrNotFound)
	}
	for i, p := range sess.Participants {
		if p.ID == participantID {
			sess.Participants = append(sess.Participants[:i], sess.Participants[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("participant %s: %w", participantID, status.ErrNotFound)
}

func (m *Memory) ReplaceVenues(_ context.Context, code string, venues []*models.Venue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return fmt.Errorf("session %s: %w", code, status.ErrNotFound)
	}
	replacement := make([]*models.Venue, len(venues))
	for i, v := range venues {
		cv := *v
		replacement[i] = &cv
	}
	sess.Venues = replacement
	return nil
}

func (m *Memory) UpsertVote(_ context.Context, code string, vote *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return fmt.Errorf("session %s: %w", code, status.ErrNotFound)
	}
	cv := *vote
	for i, existing := range sess.Votes {
		if existing.ParticipantID == vote.ParticipantID && existing.VenueID == vote.VenueID {
			sess.Votes[i] = &cv
			return nil
		}
	}
	sess.Votes = append(sess.Votes, &cv)
	return nil
}

func (m *Memory) DeleteVotesByParticipant(_ context.Context, code, participantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return fmt.Errorf("session %s: %w", code, status.ErrNotFound)
	}
	kept := sess.Votes[:0]
	for _, v := range sess.Votes {
		if v.ParticipantID != participantID {
			kept = append(kept, v)
		}
	}
	sess.Votes = kept
	return nil
}

func (m *Memory) DeleteSessionCascade(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[code]; !ok {
		return fmt.Errorf("session %s: %w", code, status.ErrNotFound)
	}
	delete(m.sessions, code)
	delete(m.blocked, code)
	return nil
}

func (m *Memory) BlockVenue(_ context.Context, code string, blocked *models.BlockedVenue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cb := *blocked
	m.blocked[code] = append(m.blocked[code], &cb)
	return nil
}

func (m *Memory) BlockedVenueIDs(_ context.Context, code string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[string]bool)
	for _, b := range m.blocked[code] {
		ids[b.VenueID] = true
	}
	return ids, nil
}

func (m *Memory) InsertHistory(_ context.Context, records []*models.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		cr := *rec
		m.history = append(m.history, &cr)
	}
	return nil
}

func (m *Memory) HistoryByParticipant(_ context.Context, participantID string) ([]*models.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.HistoryRecord
	for _, rec := range m.history {
		if rec.ParticipantID == participantID {
			cr := *rec
			out = append(out, &cr)
		}
	}
	return out, nil
}
