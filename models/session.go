package models

import (
	"time"
)

type MidpointMode string

const (
	MidpointDynamic MidpointMode = "dynamic"
	MidpointLocked  MidpointMode = "locked"
)

// Phase is derived from session state, never stored.
type Phase string

const (
	PhaseForming   Phase = "forming"
	PhaseSearching Phase = "searching"
	PhaseVoting    Phase = "voting"
	PhaseMatched   Phase = "matched"
)

type Session struct {
	Code            string         `json:"code"`
	HostID          string         `json:"host_id"`
	Participants    []*Participant `json:"participants"`
	Midpoint        *Location      `json:"midpoint"`
	MidpointMode    MidpointMode   `json:"midpoint_mode"`
	Venues          []*Venue       `json:"venues"`
	Votes           []*Vote        `json:"votes"`
	MatchedVenue    *Venue         `json:"matched_venue"`
	IsLocked        bool           `json:"is_locked"`
	MaxParticipants int            `json:"max_participants"`
	VenuesFetched   bool           `json:"venues_fetched"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (s *Session) Participant(id string) *Participant {
	for _, p := range s.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) Venue(id string) *Venue {
	for _, v := range s.Venues {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// Vote returns the current decision for a (participant, venue) pair.
func (s *Session) Vote(participantID, venueID string) *Vote {
	for _, v := range s.Votes {
		if v.ParticipantID == participantID && v.VenueID == venueID {
			return v
		}
	}
	return nil
}

func (s *Session) AllReady() bool {
	if len(s.Participants) == 0 {
		return false
	}
	for _, p := range s.Participants {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func (s *Session) Phase() Phase {
	switch {
	case s.MatchedVenue != nil:
		return PhaseMatched
	case len(s.Venues) > 0:
		return PhaseVoting
	case s.AllReady() && s.Midpoint != nil:
		return PhaseSearching
	default:
		return PhaseForming
	}
}

// Clone deep-copies the session so published snapshots stay immutable.
func (s *Session) Clone() *Session {
	out := *s
	if s.Midpoint != nil {
		mp := *s.Midpoint
		out.Midpoint = &mp
	}
	if s.MatchedVenue != nil {
		mv := *s.MatchedVenue
		out.MatchedVenue = &mv
	}
	out.Participants = make([]*Participant, len(s.Participants))
	for i, p := range s.Participants {
		cp := *p
		if p.Location != nil {
			loc := *p.Location
			cp.Location = &loc
		}
		out.Participants[i] = &cp
	}
	out.Venues = make([]*Venue, len(s.Venues))
	for i, v := range s.Venues {
		cv := *v
		out.Venues[i] = &cv
	}
	out.Votes = make([]*Vote, len(s.Votes))
	for i, v := range s.Votes {
		cv := *v
		out.Votes[i] = &cv
	}
	return &out
}
