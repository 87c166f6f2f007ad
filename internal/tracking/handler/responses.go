package handler

import (
	"fmt"
	"time"

	"rumbo/internal/tracking/models"
	"rumbo/internal/tracking/service"
)

// LocationResponse is the HTTP response for a created durable record.
type LocationResponse struct {
	ID        int64     `json:"id"`
	SubjectID int64     `json:"subject_id"`
	PackageID int64     `json:"package_id,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Status    string    `json:"status"`
}

// LiveResponse is the HTTP response for a live cache write.
type LiveResponse struct {
	SubjectID      int64   `json:"subject_id"`
	PackageID      int64   `json:"package_id,omitempty"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	CapturedAt     string  `json:"captured_at"`
	CapturedAtUnix int64   `json:"captured_at_unix"`
	Status         string  `json:"status"`
}

// LastKnownResponse is the HTTP response for a last-known position query.
type LastKnownResponse struct {
	SubjectID   int64     `json:"subject_id"`
	PackageID   int64     `json:"package_id,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CapturedAt  time.Time `json:"captured_at"`
	Source      string    `json:"source"`
	IsRecent    bool      `json:"is_recent"`
	MinutesAgo  int       `json:"minutes_ago"`
	RelativeAge string    `json:"relative_age"`
}

// HistoryEntry is one record in a history response, with derived age fields.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	PackageID   int64     `json:"package_id,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CreatedAt   time.Time `json:"created_at"`
	MinutesAgo  int       `json:"minutes_ago"`
	RelativeAge string    `json:"relative_age"`
}

// HistoryResponse is the HTTP response for a history query.
type HistoryResponse struct {
	SubjectID int64          `json:"subject_id"`
	Count     int            `json:"count"`
	Locations []HistoryEntry `json:"locations"`
}

// FromPersisted converts a durable record to a created-location response.
func FromPersisted(rec models.PersistedLocation) *LocationResponse {
	return &LocationResponse{
		ID:        rec.ID,
		SubjectID: int64(rec.SubjectID),
		PackageID: int64(rec.PackageID),
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Status:    "created",
	}
}

// FromLive converts a live location to its response form.
func FromLive(loc models.LiveLocation) *LiveResponse {
	return &LiveResponse{
		SubjectID:      int64(loc.SubjectID),
		PackageID:      int64(loc.PackageID),
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		CapturedAt:     loc.CapturedAt,
		CapturedAtUnix: loc.CapturedAtUnix,
		Status:         "ok",
	}
}

// FromPosition converts a service position to a last-known response.
func FromPosition(pos service.Position) *LastKnownResponse {
	return &LastKnownResponse{
		SubjectID:   int64(pos.SubjectID),
		PackageID:   int64(pos.PackageID),
		Latitude:    pos.Latitude,
		Longitude:   pos.Longitude,
		CapturedAt:  pos.CapturedAt,
		Source:      pos.Source,
		IsRecent:    pos.IsRecent,
		MinutesAgo:  pos.MinutesAgo,
		RelativeAge: relativeAge(pos.MinutesAgo),
	}
}

// FromHistory converts durable records to a history response. now anchors the
// derived age fields so all entries in one response agree.
func FromHistory(subjectID int64, recs []models.PersistedLocation, now time.Time) *HistoryResponse {
	entries := make([]HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		age := now.Sub(rec.CreatedAt)
		if age < 0 {
			age = 0
		}
		minutes := int(age / time.Minute)
		entries = append(entries, HistoryEntry{
			ID:          rec.ID,
			PackageID:   int64(rec.PackageID),
			Latitude:    rec.Latitude,
			Longitude:   rec.Longitude,
			CreatedAt:   rec.CreatedAt,
			MinutesAgo:  minutes,
			RelativeAge: relativeAge(minutes),
		})
	}
	return &HistoryResponse{
		SubjectID: subjectID,
		Count:     len(entries),
		Locations: entries,
	}
}

func relativeAge(minutes int) string {
	switch {
	case minutes < 1:
		return "just now"
	case minutes == 1:
		return "1 minute ago"
	case minutes < 60:
		return fmt.Sprintf("%d minutes ago", minutes)
	case minutes < 120:
		return "1 hour ago"
	case minutes < 60*24:
		return fmt.Sprintf("%d hours ago", minutes/60)
	case minutes < 60*48:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", minutes/(60*24))
	}
}
