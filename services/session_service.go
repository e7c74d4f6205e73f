package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"meetpoint/config"
	"meetpoint/geo"
	"meetpoint/internal/status"
	"meetpoint/models"
	"meetpoint/monitoring"
	"meetpoint/realtime"
	"meetpoint/store"
	"meetpoint/utils"
)

const (
	liveSessionsKey   = "sessions:live"
	sessionCodeLength = 6
	codeAttempts      = 5
)

// SessionService is the session orchestrator: it owns the lifecycle, applies
// every intent one at a time per session code, and publishes the resulting
// snapshot after each successful mutation.
type SessionService struct {
	Store    store.Store
	Redis    *redis.Client
	notifier *realtime.Notifier
	config   *config.Config

	locks  *keyedLocks
	venues *VenueService
}

func NewSessionService(st store.Store, redisClient *redis.Client, notifier *realtime.Notifier, cfg *config.Config) *SessionService {
	return &SessionService{
		Store:    st,
		Redis:    redisClient,
		notifier: notifier,
		config:   cfg,
		locks:    newKeyedLocks(),
	}
}

// BindVenueService wires the venue service used for the one-time automatic
// search once every participant is ready. Called once during startup.
func (s *SessionService) BindVenueService(vs *VenueService) {
	s.venues = vs
}

// withSession applies fn under the session's lock and publishes the new
// snapshot on success. fn must validate before touching the store so a
// failed intent never partially applies.
func (s *SessionService) withSession(ctx context.Context, code string, fn func(sess *models.Session) error) (*models.Session, error) {
	mu := s.locks.acquire(code)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.Store.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}

	s.notifier.Publish(sess)
	return sess, nil
}

func (s *SessionService) Create(ctx context.Context, hostName string) (*models.Session, error) {
	if hostName == "" {
		return nil, fmt.Errorf("host name is required: %w", status.ErrInvalidArgument)
	}

	code, err := s.reserveCode(ctx)
	if err != nil {
		monitoring.TrackIntent("create_session", "error")
		return nil, err
	}

	hostID, err := utils.GenerateToken(12)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	host := &models.Participant{
		ID:         hostID,
		Name:       hostName,
		IsHost:     true,
		JoinedAt:   now,
		LastActive: now,
	}
	sess := &models.Session{
		Code:            code,
		HostID:          hostID,
		Participants:    []*models.Participant{host},
		MidpointMode:    models.MidpointDynamic,
		MaxParticipants: s.config.MaxParticipants,
		CreatedAt:       now,
	}

	if err := s.Store.UpsertSession(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.Store.UpsertParticipant(ctx, code, host); err != nil {
		return nil, err
	}

	monitoring.TrackIntent("create_session", "success")
	s.notifier.Publish(sess)
	return sess, nil
}

// reserveCode generates a session code and collision-checks it against the
// live set before claiming it.
func (s *SessionService) reserveCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := utils.GenerateSessionCode(sessionCodeLength)
		if err != nil {
			return "", err
		}

		taken, err := s.Redis.SIsMember(ctx, liveSessionsKey, code).Result()
		if err != nil {
			return "", fmt.Errorf("reserveCode: %w", err)
		}
		if taken {
			continue
		}

		if err := s.Redis.SAdd(ctx, liveSessionsKey, code).Err(); err != nil {
			return "", fmt.Errorf("reserveCode: %w", err)
		}
		return code, nil
	}
	return "", fmt.Errorf("could not generate a free session code after %d attempts", codeAttempts)
}

func (s *SessionService) Get(ctx context.Context, code string) (*models.Session, error) {
	return s.Store.GetSession(ctx, code)
}

func (s *SessionService) Join(ctx context.Context, code, name string) (*models.Participant, *models.Session, error) {
	if name == "" {
		return nil, nil, fmt.Errorf("participant name is required: %w", status.ErrInvalidArgument)
	}

	var joined *models.Participant
	sess, err := s.withSession(ctx, code, func(sess *models.Session) error {
		if sess.IsLocked {
			return status.ErrSessionLocked
		}
		if len(sess.Participants) >= sess.MaxParticipants {
			return status.ErrSessionFull
		}

		id, err := utils.GenerateToken(12)
		if err != nil {
			return err
		}
		now := time.Now()
		joined = &models.Participant{
			ID:         id,
			Name:       name,
			JoinedAt:   now,
			LastActive: now,
		}
		if err := s.Store.UpsertParticipant(ctx, code, joined); err != nil {
			return err
		}
		sess.Participants = append(sess.Participants, joined)
		return nil
	})
	if err != nil {
		monitoring.TrackIntent("join", "error")
		return nil, nil, err
	}

	monitoring.TrackIntent("join", "success")
	return joined, sess, nil
}

func (s *SessionService) SetLocation(ctx context.Context, code, participantID string, loc models.Location) (*models.Session, error) {
	var triggerSearch bool
	sess, err := s.withSession(ctx, code, func(sess *models.Session) error {
		p := sess.Participant(participantID)
		if p == nil {
			return fmt.Errorf("participant %s: %w", participantID, status.ErrNotFound)
		}

		locCopy := loc
		p.Location = &locCopy
		p.IsReady = true
		p.LastActive = time.Now()
		if err := s.Store.UpsertParticipant(ctx, code, p); err != nil {
			return err
		}

		if err := recomputeMidpoint(sess); err != nil {
			return err
		}

		if !sess.VenuesFetched && sess.AllReady() && sess.Midpoint != nil {
			sess.VenuesFetched = true
			triggerSearch = true
		}
		return s.Store.UpsertSession(ctx, sess)
	})
	if err != nil {
		monitoring.TrackIntent("set_location", "error")
		return nil, err
	}

	monitoring.TrackIntent("set_location", "success")
	s.maybeStartFirstSearch(code, triggerSearch)
	return sess, nil
}

// SetReady is the explicit confirmation variant. It never outruns the
// invariant: a participant without a location cannot be ready.
func (s *SessionService) SetReady(ctx context.Context, code, participantID string) (*models.Session, error) {
	var triggerSearch bool
	sess, err := s.withSession(ctx, code, func(sess *models.Session) error {
		p := sess.Participant(participantID)
		if p == nil {
			return fmt.Errorf("participant %s: %w", participantID, status.ErrNotFound)
		}
		if p.Location == nil {
			return fmt.Errorf("cannot be ready without a location: %w", status.ErrInvalidArgument)
		}

		p.IsReady = true
		p.LastActive = time.Now()
		if err := s.Store.UpsertParticipant(ctx, code, p); err != nil {
			return err
		}

		if !sess.VenuesFetched && sess.AllReady() && sess.Midpoint != nil {
			sess.VenuesFetched = true
			triggerSearch = true
			return s.Store.UpsertSession(ctx, sess)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.maybeStartFirstSearch(code, triggerSearch)
	return sess, nil
}

func (s *SessionService) maybeStartFirstSearch(code string, trigger bool) {
	if !trigger || s.venues == nil {
		return
	}
	go func() {
		if _, err := s.venues.Refresh(context.Background(), code, models.DefaultVenueFilters()); err != nil {
			log.Printf("initial venue search for session %s failed: %v", code, err)
		}
	}()
}

func (s *SessionService) SetMidpointMode(ctx context.Context, code string, mode models.MidpointMode) (*models.Session, error) {
	if mode != models.MidpointDynamic && mode != models.MidpointLocked {
		return nil, fmt.Errorf("unknown midpoint mode %q: %w", mode, status.ErrInvalidArgument)
	}

	return s.withSession(ctx, code, func(sess *models.Session) error {
		sess.MidpointMode = mode
		if err := recomputeMidpoint(sess); err != nil {
			return err
		}
		return s.Store.UpsertSession(ctx, sess)
	})
}

func (s *SessionService) SetLocked(ctx context.Context, code, actorID string, locked bool) (*models.Session, error) {
	return s.withSession(ctx, code, func(sess *models.Session) error {
		if actorID != sess.HostID {
			return fmt.Errorf("only the host can lock a session: %w", status.ErrForbidden)
		}
		sess.IsLocked = locked
		return s.Store.UpsertSession(ctx, sess)
	})
}

// Remove is the host-only removal of another participant. An existing match
// is left in place.
func (s *SessionService) Remove(ctx context.Context, code, actorID, participantID string) (*models.Session, error) {
	sess, err := s.withSession(ctx, code, func(sess *models.Session) error {
		if actorID != sess.HostID {
			return fmt.Errorf("only the host can remove participants: %w", status.ErrForbidden)
		}
		if participantID == sess.HostID {
			return fmt.Errorf("the host cannot be removed, end the session instead: %w", status.ErrForbidden)
		}
		return s.removeParticipant(ctx, sess, participantID)
	})
	if err != nil {
		monitoring.TrackIntent("remove_participant", "error")
		return nil, err
	}
	monitoring.TrackIntent("remove_participant", "success")
	return sess, nil
}

// Leave is self-removal. The host leaves by ending the session.
func (s *SessionService) Leave(ctx context.Context, code, participantID string) (*models.Session, error) {
	return s.withSession(ctx, code, func(sess *models.Session) error {
		if participantID == sess.HostID {
			return fmt.Errorf("the host cannot leave, end the session instead: %w", status.ErrForbidden)
		}
		return s.removeParticipant(ctx, sess, participantID)
	})
}

func (s *SessionService) removeParticipant(ctx context.Context, sess *models.Session, participantID string) error {
	if sess.Participant(participantID) == nil {
		return fmt.Errorf("participant %s: %w", participantID, status.ErrNotFound)
	}

	if err := s.Store.DeleteVotesByParticipant(ctx, sess.Code, participantID); err != nil {
		return err
	}
	if err := s.Store.DeleteParticipant(ctx, sess.Code, participantID); err != nil {
		return err
	}

	for i, p := range sess.Participants {
		if p.ID == participantID {
			sess.Participants = append(sess.Participants[:i], sess.Participants[i+1:]...)
			break
		}
	}
	kept := sess.Votes[:0]
	for _, v := range sess.Votes {
		if v.ParticipantID != participantID {
			kept = append(kept, v)
		}
	}
	sess.Votes = kept

	if err := recomputeMidpoint(sess); err != nil {
		return err
	}
	return s.Store.UpsertSession(ctx, sess)
}

// Touch bumps a participant's last-active timestamp.
func (s *SessionService) Touch(ctx context.Context, code, participantID string) (*models.Session, error) {
	return s.withSession(ctx, code, func(sess *models.Session) error {
		p := sess.Participant(participantID)
		if p == nil {
			return fmt.Errorf("participant %s: %w", participantID, status.ErrNotFound)
		}
		p.LastActive = time.Now()
		return s.Store.UpsertParticipant(ctx, code, p)
	})
}

// End tears down the session and everything under it. History records
// survive.
func (s *SessionService) End(ctx context.Context, code, actorID string) error {
	mu := s.locks.acquire(code)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.Store.GetSession(ctx, code)
	if err != nil {
		return err
	}
	if actorID != sess.HostID {
		return fmt.Errorf("only the host can end a session: %w", status.ErrForbidden)
	}

	if err := s.Store.DeleteSessionCascade(ctx, code); err != nil {
		return err
	}
	if err := s.Redis.SRem(ctx, liveSessionsKey, code).Err(); err != nil {
		log.Printf("failed to release session code %s: %v", code, err)
	}
	s.Redis.Del(ctx, voteTallyKey(code))

	monitoring.TrackIntent("end_session", "success")
	s.notifier.PublishEnded(code)
	s.locks.drop(code)
	return nil
}

// CleanupInactiveSessions ends sessions whose participants have all gone
// quiet for longer than the configured TTL.
func (s *SessionService) CleanupInactiveSessions(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepInactive(ctx)
		}
	}
}

func (s *SessionService) sweepInactive(ctx context.Context) {
	codes, err := s.Redis.SMembers(ctx, liveSessionsKey).Result()
	if err != nil {
		log.Printf("Error listing live sessions: %v", err)
		return
	}

	swept := 0
	for _, code := range codes {
		if s.sweepSession(ctx, code) {
			swept++
		}
	}

	if swept > 0 {
		log.Printf("Swept %d inactive sessions", swept)
	}
}

// sweepSession ends one idle session. It serializes with in-flight intents
// through the per-session lock and re-checks idleness after acquiring it, so
// an intent that got there first keeps the session alive instead of
// resurrecting it after the delete.
func (s *SessionService) sweepSession(ctx context.Context, code string) bool {
	mu := s.locks.acquire(code)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.Store.GetSession(ctx, code)
	if err != nil {
		// Stale registry entry, release the code.
		s.Redis.SRem(ctx, liveSessionsKey, code)
		return false
	}

	lastActive := sess.CreatedAt
	for _, p := range sess.Participants {
		if p.LastActive.After(lastActive) {
			lastActive = p.LastActive
		}
	}
	if time.Since(lastActive) < s.config.SessionTTL {
		return false
	}

	if err := s.Store.DeleteSessionCascade(ctx, code); err != nil {
		log.Printf("Error sweeping session %s: %v", code, err)
		return false
	}
	s.Redis.SRem(ctx, liveSessionsKey, code)
	s.Redis.Del(ctx, voteTallyKey(code))
	s.notifier.PublishEnded(code)
	s.locks.drop(code)
	return true
}

// recomputeMidpoint recalculates the group midpoint from every participant
// with a known location. A locked midpoint stays frozen even as
// participants change.
func recomputeMidpoint(sess *models.Session) error {
	if sess.MidpointMode == models.MidpointLocked && sess.Midpoint != nil {
		return nil
	}

	var locations []models.Location
	for _, p := range sess.Participants {
		if p.Location != nil {
			locations = append(locations, *p.Location)
		}
	}
	if len(locations) == 0 {
		sess.Midpoint = nil
		return nil
	}

	midpoint, err := geo.Centroid(locations)
	if err != nil {
		return err
	}
	sess.Midpoint = &midpoint
	return nil
}
