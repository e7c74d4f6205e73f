package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"meetpoint/config"
	"meetpoint/geo"
	"meetpoint/internal/places"
	"meetpoint/internal/status"
	"meetpoint/models"
	"meetpoint/monitoring"
	"meetpoint/store"
	"meetpoint/utils"
)

// Venues in the same half-unit rating band are treated as tied and ordered
// by distance from the midpoint instead. Rounding puts the band boundaries
// on the .25/.75 marks, so 4.3 through 4.7 share the 4.5 band while 4.2
// sits in the band below.
const ratingTieBand = 0.5

// VenueService owns the candidate set: it queries the venue-search provider
// and wholesale-replaces a session's venues. Existing votes are never purged
// by a refresh; match detection simply ignores votes for venues no longer in
// the list.
type VenueService struct {
	Store    store.Store
	sessions *SessionService
	searcher places.Searcher
	breaker  *utils.CircuitBreaker
	config   *config.Config
}

func NewVenueService(st store.Store, sessions *SessionService, searcher places.Searcher, cfg *config.Config) *VenueService {
	return &VenueService{
		Store:    st,
		sessions: sessions,
		searcher: searcher,
		breaker:  utils.NewCircuitBreaker("venue-search"),
		config:   cfg,
	}
}

// Refresh replaces the session's candidate set using the given filters. A
// provider failure degrades to an empty list and a recoverable
// ErrUpstreamUnavailable; the session itself stays healthy.
func (s *VenueService) Refresh(ctx context.Context, code string, filters models.VenueFilters) (*models.Session, error) {
	filters = normalizeFilters(filters)

	// Read the midpoint without holding the session lock; the slow provider
	// call must not block other intents (no locks across I/O).
	current, err := s.Store.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if current.Midpoint == nil {
		return nil, fmt.Errorf("session %s has no midpoint yet: %w", code, status.ErrInvalidArgument)
	}
	midpoint := *current.Midpoint

	started := time.Now()
	var results []places.Place
	searchErr := s.breaker.Execute(func() error {
		cctx, cancel := context.WithTimeout(ctx, s.config.VenueSearchTimeout)
		defer cancel()

		var err error
		results, err = s.searcher.SearchNearby(cctx, midpoint.Lat, midpoint.Lng, filters.RadiusMeters, filters.Categories)
		return err
	})
	monitoring.ObserveVenueRefresh(time.Since(started))
	if searchErr != nil {
		monitoring.TrackProviderFailure()
		log.Printf("venue search for session %s failed: %v", code, searchErr)
		results = nil
	}

	blocked, err := s.Store.BlockedVenueIDs(ctx, code)
	if err != nil {
		log.Printf("loading blocked venues for session %s failed: %v", code, err)
		blocked = nil
	}

	sess, err := s.sessions.withSession(ctx, code, func(sess *models.Session) error {
		if sess.Midpoint == nil {
			return fmt.Errorf("session %s lost its midpoint: %w", code, status.ErrInvalidArgument)
		}

		venues := buildCandidates(results, *sess.Midpoint, filters, blocked, s.config.MaxVenues)
		if err := s.Store.ReplaceVenues(ctx, code, venues); err != nil {
			return err
		}
		sess.Venues = venues
		sess.VenuesFetched = true
		return s.Store.UpsertSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	if searchErr != nil {
		return sess, fmt.Errorf("venue search failed: %w", status.ErrUpstreamUnavailable)
	}
	return sess, nil
}

// Block hides a venue from this session's future refreshes. The current
// candidate list is left as is.
func (s *VenueService) Block(ctx context.Context, code, participantID, venueID string) (*models.Session, error) {
	return s.sessions.withSession(ctx, code, func(sess *models.Session) error {
		if sess.Participant(participantID) == nil {
			return fmt.Errorf("participant %s: %w", participantID, status.ErrNotFound)
		}
		venue := sess.Venue(venueID)
		if venue == nil {
			return fmt.Errorf("venue %s: %w", venueID, status.ErrNotFound)
		}

		return s.Store.BlockVenue(ctx, code, &models.BlockedVenue{
			ParticipantID: participantID,
			VenueID:       venueID,
			VenueName:     venue.Name,
			BlockedAt:     time.Now(),
		})
	})
}

func normalizeFilters(filters models.VenueFilters) models.VenueFilters {
	defaults := models.DefaultVenueFilters()
	if filters.RadiusMeters <= 0 {
		filters.RadiusMeters = defaults.RadiusMeters
	}
	if len(filters.Categories) == 0 {
		filters.Categories = defaults.Categories
	}
	if filters.MaxPriceLevel <= 0 {
		filters.MaxPriceLevel = defaults.MaxPriceLevel
	}
	if filters.MinRating < 0 {
		filters.MinRating = 0
	}
	return filters
}

// buildCandidates filters, deduplicates, ranks and caps raw provider
// results. Ranking: rating descending in half-unit bands, band ties broken
// by distance from the midpoint ascending.
func buildCandidates(results []places.Place, midpoint models.Location, filters models.VenueFilters, blocked map[string]bool, max int) []*models.Venue {
	seen := make(map[string]bool)
	venues := make([]*models.Venue, 0, len(results))
	for _, place := range results {
		id := place.ID
		if id == "" {
			generated, err := utils.GenerateToken(12)
			if err != nil {
				continue
			}
			id = generated
		}
		if seen[id] || blocked[id] {
			continue
		}

		// Re-filter locally: providers occasionally ignore their own
		// rating/price constraints.
		if filters.MinRating > 0 && place.Rating < filters.MinRating {
			continue
		}
		if place.PriceLevel > 0 && place.PriceLevel > filters.MaxPriceLevel {
			continue
		}

		seen[id] = true
		category := "other"
		if len(place.Categories) > 0 {
			category = place.Categories[0]
		}
		venues = append(venues, &models.Venue{
			ID:         id,
			Name:       place.Name,
			Category:   category,
			Address:    place.Address,
			Lat:        place.Lat,
			Lng:        place.Lng,
			Rating:     place.Rating,
			PriceLevel: place.PriceLevel,
			PhotoRef:   place.PhotoRef,
			DistanceKm: geo.DistanceKm(midpoint.Lat, midpoint.Lng, place.Lat, place.Lng),
		})
	}

	sort.SliceStable(venues, func(i, j int) bool {
		bi, bj := ratingBand(venues[i].Rating), ratingBand(venues[j].Rating)
		if bi != bj {
			return bi > bj
		}
		return venues[i].DistanceKm < venues[j].DistanceKm
	})

	if len(venues) > max {
		venues = venues[:max]
	}
	for i, v := range venues {
		v.Rank = i + 1
	}
	return venues
}

func ratingBand(rating float64) int {
	return int(math.Round(rating / ratingTieBand))
}
