package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"meetpoint/internal/status"
	"meetpoint/models"
	"meetpoint/monitoring"
	"meetpoint/store"
)

// VoteService holds the vote ledger and runs match detection after every
// cast.
type VoteService struct {
	Store    store.Store
	sessions *SessionService
}

// voteTallyKey addresses the per-session Redis hash mirroring approve/reject
// counts per venue. Best effort, for dashboards; the store stays the source
// of truth.
func voteTallyKey(code string) string {
	return fmt.Sprintf("sessions:tally:%s", code)
}

func NewVoteService(st store.Store, sessions *SessionService) *VoteService {
	return &VoteService{
		Store:    st,
		sessions: sessions,
	}
}

// Cast upserts the (participant, venue) decision, last write wins, then
// checks for a match.
func (s *VoteService) Cast(ctx context.Context, code, participantID, venueID string, approve bool) (*models.Session, error) {
	sess, err := s.sessions.withSession(ctx, code, func(sess *models.Session) error {
		p := sess.Participant(participantID)
		if p == nil {
			return fmt.Errorf("participant %s: %w", participantID, status.ErrNotFound)
		}
		if sess.Venue(venueID) == nil {
			return fmt.Errorf("venue %s: %w", venueID, status.ErrNotFound)
		}

		now := time.Now()
		vote := &models.Vote{
			ParticipantID: participantID,
			VenueID:       venueID,
			Approved:      approve,
			CastAt:        now,
		}
		if err := s.Store.UpsertVote(ctx, code, vote); err != nil {
			return err
		}
		upsertVote(sess, vote)

		p.LastActive = now
		if err := s.Store.UpsertParticipant(ctx, code, p); err != nil {
			return err
		}

		// A match is sticky: detection only re-runs while there is no match,
		// or when the matched venue fell out of the current candidate list.
		if sess.MatchedVenue == nil || sess.Venue(sess.MatchedVenue.ID) == nil {
			if matched := DetectMatch(sess); matched != nil {
				sess.MatchedVenue = matched
				if err := s.Store.UpsertSession(ctx, sess); err != nil {
					return err
				}
				s.recordHistory(ctx, sess)
				monitoring.TrackMatch()
			}
		}
		return nil
	})
	if err != nil {
		monitoring.TrackIntent("cast_vote", "error")
		return nil, err
	}

	field := venueID + ":reject"
	if approve {
		field = venueID + ":approve"
	}
	if err := s.sessions.Redis.HIncrBy(ctx, voteTallyKey(code), field, 1).Err(); err != nil {
		log.Printf("failed to mirror vote tally for session %s: %v", code, err)
	}

	monitoring.TrackVote(approve)
	monitoring.TrackIntent("cast_vote", "success")
	return sess, nil
}

func upsertVote(sess *models.Session, vote *models.Vote) {
	for i, v := range sess.Votes {
		if v.ParticipantID == vote.ParticipantID && v.VenueID == vote.VenueID {
			sess.Votes[i] = vote
			return
		}
	}
	sess.Votes = append(sess.Votes, vote)
}

// DetectMatch returns the first venue, in candidate order, approved by every
// current participant. With zero participants there is never a match. Pure:
// the session is only read.
func DetectMatch(sess *models.Session) *models.Venue {
	if len(sess.Participants) == 0 {
		return nil
	}

	for _, venue := range sess.Venues {
		allApproved := true
		for _, p := range sess.Participants {
			vote := sess.Vote(p.ID, venue.ID)
			if vote == nil || !vote.Approved {
				allApproved = false
				break
			}
		}
		if allApproved {
			return venue
		}
	}
	return nil
}

// recordHistory writes one history record per participant. History is best
// effort: a storage failure here never rolls back the match.
func (s *VoteService) recordHistory(ctx context.Context, sess *models.Session) {
	names := make([]string, len(sess.Participants))
	for i, p := range sess.Participants {
		names[i] = p.Name
	}

	matched := sess.MatchedVenue
	now := time.Now()
	records := make([]*models.HistoryRecord, len(sess.Participants))
	for i, p := range sess.Participants {
		records[i] = &models.HistoryRecord{
			SessionCode:      sess.Code,
			ParticipantID:    p.ID,
			ParticipantNames: names,
			VenueID:          matched.ID,
			VenueName:        matched.Name,
			VenueAddress:     matched.Address,
			VenueLat:         matched.Lat,
			VenueLng:         matched.Lng,
			VenueRating:      matched.Rating,
			VenuePhotoRef:    matched.PhotoRef,
			CompletedAt:      now,
		}
	}

	if err := s.Store.InsertHistory(ctx, records); err != nil {
		log.Printf("failed to record history for session %s: %v", sess.Code, err)
	}
}

// History lists past matches for one participant id, newest first.
func (s *VoteService) History(ctx context.Context, participantID string) ([]*models.HistoryRecord, error) {
	return s.Store.HistoryByParticipant(ctx, participantID)
}

type ParticipantInsight struct {
	Name        string `json:"name"`
	Votes       int    `json:"votes"`
	IsReady     bool   `json:"is_ready"`
	HasLocation bool   `json:"has_location"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type Insights struct {
	DurationMinutes int                  `json:"duration_minutes"`
	TotalVotes      int                  `json:"total_votes"`
	TotalApproves   int                  `json:"total_approves"`
	TotalRejects    int                  `json:"total_rejects"`
	ApprovalRate    float64              `json:"approval_rate"`
	VenuesShown     int                  `json:"venues_shown"`
	VenuesWithVotes int                  `json:"venues_with_votes"`
	Participants    []ParticipantInsight `json:"participants"`
	MostActive      string               `json:"most_active,omitempty"`
	TopCategories   []CategoryCount      `json:"top_categories"`
	Matched         bool                 `json:"matched"`
}

// Insights summarizes voting activity for a session.
func (s *VoteService) Insights(ctx context.Context, code string) (*Insights, error) {
	sess, err := s.Store.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}

	out := &Insights{
		DurationMinutes: int(time.Since(sess.CreatedAt).Minutes()),
		VenuesShown:     len(sess.Venues),
		Matched:         sess.MatchedVenue != nil,
	}

	perParticipant := make(map[string]int)
	votedVenues := make(map[string]bool)
	for _, v := range sess.Votes {
		out.TotalVotes++
		if v.Approved {
			out.TotalApproves++
		} else {
			out.TotalRejects++
		}
		perParticipant[v.ParticipantID]++
		votedVenues[v.VenueID] = true
	}
	out.VenuesWithVotes = len(votedVenues)
	if out.TotalVotes > 0 {
		out.ApprovalRate = float64(out.TotalApproves) / float64(out.TotalVotes)
	}

	maxVotes := -1
	for _, p := range sess.Participants {
		out.Participants = append(out.Participants, ParticipantInsight{
			Name:        p.Name,
			Votes:       perParticipant[p.ID],
			IsReady:     p.IsReady,
			HasLocation: p.Location != nil,
		})
		if perParticipant[p.ID] > maxVotes {
			maxVotes = perParticipant[p.ID]
			out.MostActive = p.Name
		}
	}

	categories := make(map[string]int)
	for _, v := range sess.Venues {
		category := v.Category
		if category == "" {
			category = "other"
		}
		categories[category]++
	}
	for category, count := range categories {
		out.TopCategories = append(out.TopCategories, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(out.TopCategories, func(i, j int) bool {
		if out.TopCategories[i].Count != out.TopCategories[j].Count {
			return out.TopCategories[i].Count > out.TopCategories[j].Count
		}
		return out.TopCategories[i].Category < out.TopCategories[j].Category
	})
	if len(out.TopCategories) > 3 {
		out.TopCategories = out.TopCategories[:3]
	}

	return out, nil
}
