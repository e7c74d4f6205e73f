package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetpoint/config"
	"meetpoint/internal/status"
	"meetpoint/models"
	"meetpoint/realtime"
	"meetpoint/store"
)

func newTestSessionService(t *testing.T) (*SessionService, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	cfg := &config.Config{
		MaxParticipants: 3,
		SessionTTL:      time.Hour,
		CleanupInterval: time.Minute,
	}
	return NewSessionService(store.NewMemory(), db, realtime.NewNotifier(nil), cfg), mock
}

func createSession(t *testing.T, svc *SessionService, mock redismock.ClientMock) *models.Session {
	t.Helper()
	mock.Regexp().ExpectSIsMember(liveSessionsKey, `^[A-Z0-9]{6}$`).SetVal(false)
	mock.Regexp().ExpectSAdd(liveSessionsKey, `^[A-Z0-9]{6}$`).SetVal(1)

	sess, err := svc.Create(context.Background(), "Ana")
	require.NoError(t, err)
	return sess
}

func TestSessionService_Create(t *testing.T) {
	svc, mock := newTestSessionService(t)

	sess := createSession(t, svc, mock)

	assert.Regexp(t, "^[A-Z0-9]{6}$", sess.Code)
	assert.Equal(t, models.MidpointDynamic, sess.MidpointMode)
	assert.Equal(t, 3, sess.MaxParticipants)
	require.Len(t, sess.Participants, 1)

	host := sess.Participants[0]
	assert.Equal(t, sess.HostID, host.ID)
	assert.True(t, host.IsHost)
	assert.False(t, host.IsReady)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_CreateRequiresName(t *testing.T) {
	svc, _ := newTestSessionService(t)

	_, err := svc.Create(context.Background(), "")
	assert.ErrorIs(t, err, status.ErrInvalidArgument)
}

func TestSessionService_CreateRetriesOnCodeCollision(t *testing.T) {
	svc, mock := newTestSessionService(t)

	mock.Regexp().ExpectSIsMember(liveSessionsKey, `^[A-Z0-9]{6}$`).SetVal(true)
	mock.Regexp().ExpectSIsMember(liveSessionsKey, `^[A-Z0-9]{6}$`).SetVal(false)
	mock.Regexp().ExpectSAdd(liveSessionsKey, `^[A-Z0-9]{6}$`).SetVal(1)

	_, err := svc.Create(context.Background(), "Ana")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_Join(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)

	joined, updated, err := svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)
	assert.NotEmpty(t, joined.ID)
	assert.NotEqual(t, sess.HostID, joined.ID)
	assert.False(t, joined.IsHost)
	assert.Len(t, updated.Participants, 2)
}

func TestSessionService_JoinRejectsLockedAndFull(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)

	_, err := svc.SetLocked(ctx, sess.Code, sess.HostID, true)
	require.NoError(t, err)
	_, _, err = svc.Join(ctx, sess.Code, "Bo")
	assert.ErrorIs(t, err, status.ErrSessionLocked)

	_, err = svc.SetLocked(ctx, sess.Code, sess.HostID, false)
	require.NoError(t, err)

	// Cap is 3: host plus two joins fill the session.
	_, _, err = svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)
	_, _, err = svc.Join(ctx, sess.Code, "Cy")
	require.NoError(t, err)
	_, _, err = svc.Join(ctx, sess.Code, "Di")
	assert.ErrorIs(t, err, status.ErrSessionFull)
}

func TestSessionService_JoinUnknownSession(t *testing.T) {
	svc, _ := newTestSessionService(t)

	_, _, err := svc.Join(context.Background(), "NOPE12", "Bo")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestSessionService_SetLocationMarksReadyAndRecomputesMidpoint(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)
	bo, _, err := svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)

	updated, err := svc.SetLocation(ctx, sess.Code, sess.HostID, models.Location{Lat: 40.0, Lng: -74.0, Kind: models.LocationLive})
	require.NoError(t, err)
	assert.True(t, updated.Participant(sess.HostID).IsReady)
	require.NotNil(t, updated.Midpoint)
	assert.InDelta(t, 40.0, updated.Midpoint.Lat, 1e-9)

	updated, err = svc.SetLocation(ctx, sess.Code, bo.ID, models.Location{Lat: 40.02, Lng: -74.02, Kind: models.LocationManual})
	require.NoError(t, err)
	require.NotNil(t, updated.Midpoint)
	assert.InDelta(t, 40.01, updated.Midpoint.Lat, 1e-9)
	assert.InDelta(t, -74.01, updated.Midpoint.Lng, 1e-9)
}

func TestSessionService_SetLocationUnknownParticipant(t *testing.T) {
	svc, mock := newTestSessionService(t)
	sess := createSession(t, svc, mock)

	_, err := svc.SetLocation(context.Background(), sess.Code, "ghost", models.Location{Lat: 1, Lng: 2})
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestSessionService_SetReadyRequiresLocation(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)

	_, err := svc.SetReady(ctx, sess.Code, sess.HostID)
	assert.ErrorIs(t, err, status.ErrInvalidArgument)

	_, err = svc.SetLocation(ctx, sess.Code, sess.HostID, models.Location{Lat: 1, Lng: 2})
	require.NoError(t, err)

	updated, err := svc.SetReady(ctx, sess.Code, sess.HostID)
	require.NoError(t, err)
	assert.True(t, updated.Participant(sess.HostID).IsReady)
}

func TestSessionService_FirstSearchTriggersOnce(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)

	// The sole participant setting a location makes everyone ready, which
	// claims the one-time automatic search.
	updated, err := svc.SetLocation(ctx, sess.Code, sess.HostID, models.Location{Lat: 1, Lng: 2})
	require.NoError(t, err)
	assert.True(t, updated.VenuesFetched)
}

func TestSessionService_LockedMidpointStaysFrozen(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)
	bo, _, err := svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)

	_, err = svc.SetLocation(ctx, sess.Code, sess.HostID, models.Location{Lat: 40.0, Lng: -74.0})
	require.NoError(t, err)
	locked, err := svc.SetMidpointMode(ctx, sess.Code, models.MidpointLocked)
	require.NoError(t, err)
	require.NotNil(t, locked.Midpoint)
	frozenLat := locked.Midpoint.Lat

	// New locations no longer move the midpoint.
	updated, err := svc.SetLocation(ctx, sess.Code, bo.ID, models.Location{Lat: 50.0, Lng: -80.0})
	require.NoError(t, err)
	assert.Equal(t, frozenLat, updated.Midpoint.Lat)

	// Switching back to dynamic recomputes from everyone.
	dynamic, err := svc.SetMidpointMode(ctx, sess.Code, models.MidpointDynamic)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, dynamic.Midpoint.Lat, 1e-9)
}

func TestSessionService_SetMidpointModeRejectsUnknown(t *testing.T) {
	svc, _ := newTestSessionService(t)

	_, err := svc.SetMidpointMode(context.Background(), "AB12CD", "diagonal")
	assert.ErrorIs(t, err, status.ErrInvalidArgument)
}

func TestSessionService_SetLockedHostOnly(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)
	bo, _, err := svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)

	_, err = svc.SetLocked(ctx, sess.Code, bo.ID, true)
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestSessionService_RemoveDeletesParticipantAndTheirVotes(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)
	bo, _, err := svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)

	require.NoError(t, svc.Store.ReplaceVenues(ctx, sess.Code, []*models.Venue{{ID: "v1"}}))
	require.NoError(t, svc.Store.UpsertVote(ctx, sess.Code, &models.Vote{ParticipantID: bo.ID, VenueID: "v1", Approved: true}))
	require.NoError(t, svc.Store.UpsertVote(ctx, sess.Code, &models.Vote{ParticipantID: sess.HostID, VenueID: "v1", Approved: true}))

	updated, err := svc.Remove(ctx, sess.Code, sess.HostID, bo.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.Participant(bo.ID))

	// Exactly the removed participant's votes are gone.
	require.Len(t, updated.Votes, 1)
	assert.Equal(t, sess.HostID, updated.Votes[0].ParticipantID)
}

func TestSessionService_RemovePermissions(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)
	bo, _, err := svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)

	_, err = svc.Remove(ctx, sess.Code, bo.ID, sess.HostID)
	assert.ErrorIs(t, err, status.ErrForbidden, "non-host cannot remove")

	_, err = svc.Remove(ctx, sess.Code, sess.HostID, sess.HostID)
	assert.ErrorIs(t, err, status.ErrForbidden, "host cannot be removed")

	_, err = svc.Remove(ctx, sess.Code, sess.HostID, "ghost")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestSessionService_Leave(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)
	bo, _, err := svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)

	_, err = svc.Leave(ctx, sess.Code, sess.HostID)
	assert.ErrorIs(t, err, status.ErrForbidden)

	updated, err := svc.Leave(ctx, sess.Code, bo.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.Participant(bo.ID))
}

func TestSessionService_RemoveRecomputesMidpointInDynamicMode(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)
	bo, _, err := svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)

	_, err = svc.SetLocation(ctx, sess.Code, sess.HostID, models.Location{Lat: 40.0, Lng: -74.0})
	require.NoError(t, err)
	_, err = svc.SetLocation(ctx, sess.Code, bo.ID, models.Location{Lat: 50.0, Lng: -80.0})
	require.NoError(t, err)

	updated, err := svc.Remove(ctx, sess.Code, sess.HostID, bo.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Midpoint)
	assert.InDelta(t, 40.0, updated.Midpoint.Lat, 1e-9)
}

func TestSessionService_Touch(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)

	before := sess.Participants[0].LastActive

	time.Sleep(5 * time.Millisecond)
	updated, err := svc.Touch(ctx, sess.Code, sess.HostID)
	require.NoError(t, err)
	assert.True(t, updated.Participant(sess.HostID).LastActive.After(before))

	_, err = svc.Touch(ctx, sess.Code, "ghost")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestSessionService_End(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, svc, mock)
	bo, _, err := svc.Join(ctx, sess.Code, "Bo")
	require.NoError(t, err)

	err = svc.End(ctx, sess.Code, bo.ID)
	assert.ErrorIs(t, err, status.ErrForbidden)

	mock.ExpectSRem(liveSessionsKey, sess.Code).SetVal(1)
	mock.ExpectDel("sessions:tally:" + sess.Code).SetVal(1)
	require.NoError(t, svc.End(ctx, sess.Code, sess.HostID))

	_, err = svc.Get(ctx, sess.Code)
	assert.ErrorIs(t, err, status.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_SweepInactive(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()

	stale := &models.Session{
		Code:            "OLD001",
		HostID:          "h1",
		MaxParticipants: 10,
		CreatedAt:       time.Now().Add(-3 * time.Hour),
		Participants: []*models.Participant{
			{ID: "h1", IsHost: true, LastActive: time.Now().Add(-2 * time.Hour)},
		},
	}
	require.NoError(t, svc.Store.UpsertSession(ctx, stale))

	fresh := &models.Session{
		Code:            "NEW001",
		HostID:          "h2",
		MaxParticipants: 10,
		CreatedAt:       time.Now(),
		Participants: []*models.Participant{
			{ID: "h2", IsHost: true, LastActive: time.Now()},
		},
	}
	require.NoError(t, svc.Store.UpsertSession(ctx, fresh))

	mock.ExpectSMembers(liveSessionsKey).SetVal([]string{"OLD001", "NEW001", "GONE01"})
	mock.ExpectSRem(liveSessionsKey, "OLD001").SetVal(1)
	mock.ExpectDel("sessions:tally:OLD001").SetVal(1)
	mock.ExpectSRem(liveSessionsKey, "GONE01").SetVal(1)

	svc.sweepInactive(ctx)

	_, err := svc.Get(ctx, "OLD001")
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, err = svc.Get(ctx, "NEW001")
	assert.NoError(t, err)
}

func TestSessionService_SweepWaitsForInFlightIntents(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()

	stale := &models.Session{
		Code:            "RACE01",
		HostID:          "h1",
		MaxParticipants: 10,
		CreatedAt:       time.Now().Add(-3 * time.Hour),
		Participants: []*models.Participant{
			{ID: "h1", IsHost: true, LastActive: time.Now().Add(-2 * time.Hour)},
		},
	}
	require.NoError(t, svc.Store.UpsertSession(ctx, stale))

	mock.ExpectSMembers(liveSessionsKey).SetVal([]string{"RACE01"})
	mock.ExpectSRem(liveSessionsKey, "RACE01").SetVal(1)
	mock.ExpectDel("sessions:tally:RACE01").SetVal(1)

	// An intent holds the session lock with the session already loaded.
	mu := svc.locks.acquire("RACE01")
	mu.Lock()

	done := make(chan struct{})
	go func() {
		svc.sweepInactive(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("sweep finished while an intent held the session lock")
	case <-time.After(50 * time.Millisecond):
	}
	_, err := svc.Get(ctx, "RACE01")
	require.NoError(t, err, "the session must survive until the intent finishes")

	// The intent's closing write lands before the lock is released; the
	// sweeper then deletes instead of leaving a resurrected session behind.
	require.NoError(t, svc.Store.UpsertSession(ctx, stale))
	mu.Unlock()
	<-done

	_, err = svc.Get(ctx, "RACE01")
	assert.ErrorIs(t, err, status.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_SweepRechecksIdlenessUnderLock(t *testing.T) {
	svc, mock := newTestSessionService(t)
	ctx := context.Background()

	sess := &models.Session{
		Code:            "RACE02",
		HostID:          "h1",
		MaxParticipants: 10,
		CreatedAt:       time.Now().Add(-3 * time.Hour),
		Participants: []*models.Participant{
			{ID: "h1", IsHost: true, LastActive: time.Now().Add(-2 * time.Hour)},
		},
	}
	require.NoError(t, svc.Store.UpsertSession(ctx, sess))

	mock.ExpectSMembers(liveSessionsKey).SetVal([]string{"RACE02"})

	mu := svc.locks.acquire("RACE02")
	mu.Lock()

	done := make(chan struct{})
	go func() {
		svc.sweepInactive(ctx)
		close(done)
	}()

	// While the sweeper waits, the in-flight intent bumps activity.
	sess.Participants[0].LastActive = time.Now()
	require.NoError(t, svc.Store.UpsertSession(ctx, sess))
	mu.Unlock()
	<-done

	_, err := svc.Get(ctx, "RACE02")
	assert.NoError(t, err, "a freshly active session is not swept")
	assert.NoError(t, mock.ExpectationsWereMet())
}
