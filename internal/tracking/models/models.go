// Package models defines the location records flowing through the tracking
// pipeline. Keep them transport-agnostic so stores and handlers can share
// them.
package models

import (
	"time"

	"rumbo/pkg/domain"
)

// LiveLocation is the ephemeral current position of a subject. It lives in
// the cache under a fixed TTL; a new write for the same subject fully
// replaces the previous value and resets the expiry.
type LiveLocation struct {
	SubjectID      domain.SubjectID `json:"subject_id"`
	PackageID      domain.PackageID `json:"package_id"`
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
	CapturedAt     string           `json:"captured_at"` // ISO-8601
	CapturedAtUnix int64            `json:"captured_at_unix"`
}

// NewLiveLocation builds a LiveLocation stamped with the given capture time.
func NewLiveLocation(subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64, capturedAt time.Time) LiveLocation {
	return LiveLocation{
		SubjectID:      subjectID,
		PackageID:      packageID,
		Latitude:       lat,
		Longitude:      lon,
		CapturedAt:     capturedAt.UTC().Format(time.RFC3339),
		CapturedAtUnix: capturedAt.Unix(),
	}
}

// CapturedTime returns the capture time, preferring the ISO-8601 field and
// falling back to the unix timestamp when the string is malformed.
func (l LiveLocation) CapturedTime() time.Time {
	if t, err := time.Parse(time.RFC3339, l.CapturedAt); err == nil {
		return t
	}
	return time.Unix(l.CapturedAtUnix, 0).UTC()
}

// Age reports how long ago the reading was captured relative to now.
func (l LiveLocation) Age(now time.Time) time.Duration {
	return now.Sub(l.CapturedTime())
}

// PersistedLocation is a durable history record. Rows are never updated after
// creation and are deleted only by retention enforcement.
type PersistedLocation struct {
	ID        int64
	SubjectID domain.SubjectID
	PackageID domain.PackageID
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
