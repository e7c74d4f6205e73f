package store

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"meetpoint/internal/status"
	"meetpoint/models"
)

// PocketBase persists session state in PocketBase collections. See the
// migrations package for the collection definitions.
type PocketBase struct {
	app core.App
}

func NewPocketBase(app core.App) *PocketBase {
	return &PocketBase{app: app}
}

func (pb *PocketBase) GetSession(_ context.Context, code string) (*models.Session, error) {
	record, err := pb.app.FindFirstRecordByFilter(
		"sessions",
		"code = {:code}",
		dbx.Params{"code": code},
	)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", code, status.ErrNotFound)
	}

	session := &models.Session{
		Code:            record.GetString("code"),
		HostID:          record.GetString("host_id"),
		MidpointMode:    models.MidpointMode(record.GetString("midpoint_mode")),
		IsLocked:        record.GetBool("is_locked"),
		MaxParticipants: record.GetInt("max_participants"),
		VenuesFetched:   record.GetBool("venues_fetched"),
		CreatedAt:       record.GetDateTime("created").Time(),
	}
	if record.GetBool("has_midpoint") {
		session.Midpoint = &models.Location{
			Lat:  record.GetFloat("midpoint_lat"),
			Lng:  record.GetFloat("midpoint_lng"),
			Kind: models.LocationManual,
		}
	}

	participants, err := pb.app.FindRecordsByFilter(
		"participants",
		"session_code = {:code}",
		"joined_at",
		-1,
		0,
		dbx.Params{"code": code},
	)
	if err != nil {
		return nil, fmt.Errorf("load participants for %s: %w", code, err)
	}
	for _, rec := range participants {
		session.Participants = append(session.Participants, participantFromRecord(rec))
	}

	venues, err := pb.app.FindRecordsByFilter(
		"venues",
		"session_code = {:code}",
		"rank",
		-1,
		0,
		dbx.Params{"code": code},
	)
	if err != nil {
		return nil, fmt.Errorf("load venues for %s: %w", code, err)
	}
	for _, rec := range venues {
		session.Venues = append(session.Venues, venueFromRecord(rec))
	}

	votes, err := pb.app.FindRecordsByFilter(
		"votes",
		"session_code = {:code}",
		"cast_at",
		-1,
		0,
		dbx.Params{"code": code},
	)
	if err != nil {
		return nil, fmt.Errorf("load votes for %s: %w", code, err)
	}
	for _, rec := range votes {
		session.Votes = append(session.Votes, &models.Vote{
			ParticipantID: rec.GetString("participant_id"),
			VenueID:       rec.GetString("venue_id"),
			Approved:      rec.GetBool("approved"),
			CastAt:        rec.GetDateTime("cast_at").Time(),
		})
	}

	if matchedID := record.GetString("matched_venue_id"); matchedID != "" {
		// A match survives the matched venue dropping out of a later refresh,
		// so fall back to the snapshot stored on the session row.
		if venue := session.Venue(matchedID); venue != nil {
			session.MatchedVenue = venue
		} else {
			session.MatchedVenue = &models.Venue{
				ID:   matchedID,
				Name: record.GetString("matched_venue_name"),
			}
		}
	}

	return session, nil
}

func (pb *PocketBase) UpsertSession(_ context.Context, session *models.Session) error {
	record, err := pb.app.FindFirstRecordByFilter(
		"sessions",
		"code = {:code}",
		dbx.Params{"code": session.Code},
	)
	if err != nil {
		collection, cerr := pb.app.FindCollectionByNameOrId("sessions")
		if cerr != nil {
			return cerr
		}
		record = core.NewRecord(collection)
	}

	record.Set("code", session.Code)
	record.Set("host_id", session.HostID)
	record.Set("midpoint_mode", string(session.MidpointMode))
	record.Set("is_locked", session.IsLocked)
	record.Set("max_participants", session.MaxParticipants)
	record.Set("venues_fetched", session.VenuesFetched)
	record.Set("has_midpoint", session.Midpoint != nil)
	if session.Midpoint != nil {
		record.Set("midpoint_lat", session.Midpoint.Lat)
		record.Set("midpoint_lng", session.Midpoint.Lng)
	}
	if session.MatchedVenue != nil {
		record.Set("matched_venue_id", session.MatchedVenue.ID)
		record.Set("matched_venue_name", session.MatchedVenue.Name)
	} else {
		record.Set("matched_venue_id", "")
		record.Set("matched_venue_name", "")
	}

	return pb.app.Save(record)
}

func (pb *PocketBase) UpsertParticipant(_ context.Context, code string, p *models.Participant) error {
	record, err := pb.app.FindFirstRecordByFilter(
		"participants",
		"session_code = {:code} && participant_id = {:pid}",
		dbx.Params{"code": code, "pid": p.ID},
	)
	if err != nil {
		collection, cerr := pb.app.FindCollectionByNameOrId("participants")
		if cerr != nil {
			return cerr
		}
		record = core.NewRecord(collection)
	}

	record.Set("session_code", code)
	record.Set("participant_id", p.ID)
	record.Set("name", p.Name)
	record.Set("is_ready", p.IsReady)
	record.Set("is_host", p.IsHost)
	record.Set("joined_at", p.JoinedAt)
	record.Set("last_active", p.LastActive)
	if p.Location != nil {
		record.Set("location_kind", string(p.Location.Kind))
		record.Set("location_lat", p.Location.Lat)
		record.Set("location_lng", p.Location.Lng)
		record.Set("location_address", p.Location.Address)
	} else {
		record.Set("location_kind", "")
	}

	return pb.app.Save(record)
}

func (pb *PocketBase) DeleteParticipant(_ context.Context, code, participantID string) error {
	record, err := pb.app.FindFirstRecordByFilter(
		"participants",
		"session_code = {:code} && participant_id = {:pid}",
		dbx.Params{"code": code, "pid": participantID},
	)
	if err != nil {
		return fmt.Errorf("participant %s: %w", participantID, status.ErrNotFound)
	}
	return pb.app.Delete(record)
}

func (pb *PocketBase) ReplaceVenues(_ context.Context, code string, venues []*models.Venue) error {
	if err := pb.deleteByFilter("venues", code); err != nil {
		return err
	}

	collection, err := pb.app.FindCollectionByNameOrId("venues")
	if err != nil {
		return err
	}
	for _, v := range venues {
		record := core.NewRecord(collection)
		record.Set("session_code", code)
		record.Set("venue_id", v.ID)
		record.Set("name", v.Name)
		record.Set("category", v.Category)
		record.Set("address", v.Address)
		record.Set("lat", v.Lat)
		record.Set("lng", v.Lng)
		record.Set("rating", v.Rating)
		record.Set("price_level", v.PriceLevel)
		record.Set("photo_ref", v.PhotoRef)
		record.Set("distance_km", v.DistanceKm)
		record.Set("rank", v.Rank)
		if err := pb.app.Save(record); err != nil {
			return err
		}
	}
	return nil
}

func (pb *PocketBase) UpsertVote(_ context.Context, code string, vote *models.Vote) error {
	record, err := pb.app.FindFirstRecordByFilter(
		"votes",
		"session_code = {:code} && participant_id = {:pid} && venue_id = {:vid}",
		dbx.Params{"code": code, "pid": vote.ParticipantID, "vid": vote.VenueID},
	)
	if err != nil {
		collection, cerr := pb.app.FindCollectionByNameOrId("votes")
		if cerr != nil {
			return cerr
		}
		record = core.NewRecord(collection)
	}

	record.Set("session_code", code)
	record.Set("participant_id", vote.ParticipantID)
	record.Set("venue_id", vote.VenueID)
	record.Set("approved", vote.Approved)
	record.Set("cast_at", vote.CastAt)

	return pb.app.Save(record)
}

func (pb *PocketBase) DeleteVotesByParticipant(_ context.Context, code, participantID string) error {
	records, err := pb.app.FindRecordsByFilter(
		"votes",
		"session_code = {:code} && participant_id = {:pid}",
		"",
		-1,
		0,
		dbx.Params{"code": code, "pid": participantID},
	)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := pb.app.Delete(rec); err != nil {
			return err
		}
	}
	return nil
}

func (pb *PocketBase) DeleteSessionCascade(_ context.Context, code string) error {
	for _, collection := range []string{"votes", "venues", "blocked_venues", "participants"} {
		if err := pb.deleteByFilter(collection, code); err != nil {
			return err
		}
	}

	record, err := pb.app.FindFirstRecordByFilter(
		"sessions",
		"code = {:code}",
		dbx.Params{"code": code},
	)
	if err != nil {
		return fmt.Errorf("session %s: %w", code, status.ErrNotFound)
	}
	return pb.app.Delete(record)
}

func (pb *PocketBase) BlockVenue(_ context.Context, code string, blocked *models.BlockedVenue) error {
	collection, err := pb.app.FindCollectionByNameOrId("blocked_venues")
	if err != nil {
		return err
	}
	record := core.NewRecord(collection)
	record.Set("session_code", code)
	record.Set("participant_id", blocked.ParticipantID)
	record.Set("venue_id", blocked.VenueID)
	record.Set("venue_name", blocked.VenueName)
	record.Set("blocked_at", blocked.BlockedAt)
	return pb.app.Save(record)
}

func (pb *PocketBase) BlockedVenueIDs(_ context.Context, code string) (map[string]bool, error) {
	records, err := pb.app.FindRecordsByFilter(
		"blocked_venues",
		"session_code = {:code}",
		"",
		-1,
		0,
		dbx.Params{"code": code},
	)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(records))
	for _, rec := range records {
		ids[rec.GetString("venue_id")] = true
	}
	return ids, nil
}

func (pb *PocketBase) InsertHistory(_ context.Context, records []*models.HistoryRecord) error {
	collection, err := pb.app.FindCollectionByNameOrId("session_history")
	if err != nil {
		return err
	}
	for _, rec := range records {
		record := core.NewRecord(collection)
		record.Set("session_code", rec.SessionCode)
		record.Set("participant_id", rec.ParticipantID)
		record.Set("participant_names", rec.ParticipantNames)
		record.Set("venue_id", rec.VenueID)
		record.Set("venue_name", rec.VenueName)
		record.Set("venue_address", rec.VenueAddress)
		record.Set("venue_lat", rec.VenueLat)
		record.Set("venue_lng", rec.VenueLng)
		record.Set("venue_rating", rec.VenueRating)
		record.Set("venue_photo_ref", rec.VenuePhotoRef)
		record.Set("completed_at", rec.CompletedAt)
		if err := pb.app.Save(record); err != nil {
			return err
		}
		rec.ID = record.Id
	}
	return nil
}

func (pb *PocketBase) HistoryByParticipant(_ context.Context, participantID string) ([]*models.HistoryRecord, error) {
	records, err := pb.app.FindRecordsByFilter(
		"session_history",
		"participant_id = {:pid}",
		"-completed_at",
		-1,
		0,
		dbx.Params{"pid": participantID},
	)
	if err != nil {
		return nil, err
	}

	out := make([]*models.HistoryRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, &models.HistoryRecord{
			ID:               rec.Id,
			SessionCode:      rec.GetString("session_code"),
			ParticipantID:    rec.GetString("participant_id"),
			ParticipantNames: rec.GetStringSlice("participant_names"),
			VenueID:          rec.GetString("venue_id"),
			VenueName:        rec.GetString("venue_name"),
			VenueAddress:     rec.GetString("venue_address"),
			VenueLat:         rec.GetFloat("venue_lat"),
			VenueLng:         rec.GetFloat("venue_lng"),
			VenueRating:      rec.GetFloat("venue_rating"),
			VenuePhotoRef:    rec.GetString("venue_photo_ref"),
			CompletedAt:      rec.GetDateTime("completed_at").Time(),
		})
	}
	return out, nil
}

func (pb *PocketBase) deleteByFilter(collection, code string) error {
	records, err := pb.app.FindRecordsByFilter(
		collection,
		"session_code = {:code}",
		"",
		-1,
		0,
		dbx.Params{"code": code},
	)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := pb.app.Delete(rec); err != nil {
			return err
		}
	}
	return nil
}

func participantFromRecord(rec *core.Record) *models.Participant {
	p := &models.Participant{
		ID:         rec.GetString("participant_id"),
		Name:       rec.GetString("name"),
		IsReady:    rec.GetBool("is_ready"),
		IsHost:     rec.GetBool("is_host"),
		JoinedAt:   rec.GetDateTime("joined_at").Time(),
		LastActive: rec.GetDateTime("last_active").Time(),
	}
	if kind := rec.GetString("location_kind"); kind != "" {
		p.Location = &models.Location{
			Lat:     rec.GetFloat("location_lat"),
			Lng:     rec.GetFloat("location_lng"),
			Kind:    models.LocationKind(kind),
			Address: rec.GetString("location_address"),
		}
	}
	return p
}

func venueFromRecord(rec *core.Record) *models.Venue {
	return &models.Venue{
		ID:         rec.GetString("venue_id"),
		Name:       rec.GetString("name"),
		Category:   rec.GetString("category"),
		Address:    rec.GetString("address"),
		Lat:        rec.GetFloat("lat"),
		Lng:        rec.GetFloat("lng"),
		Rating:     rec.GetFloat("rating"),
		PriceLevel: rec.GetInt("price_level"),
		PhotoRef:   rec.GetString("photo_ref"),
		DistanceKm: rec.GetFloat("distance_km"),
		Rank:       rec.GetInt("rank"),
	}
}
