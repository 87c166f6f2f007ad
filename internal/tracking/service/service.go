// Package service orchestrates the tracking pipeline's write and read paths
// and translates infrastructure facts into domain errors.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rumbo/internal/tracking/metrics"
	"rumbo/internal/tracking/models"
	"rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/requestcontext"
	"rumbo/pkg/sentinel"
)

// recencyWindow bounds how old a reading may be and still count as recent.
const recencyWindow = 5 * time.Minute

// Defaults and bounds for history queries.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
	DefaultWindowHours  = 24
	MaxWindowHours      = 168
)

// Position is a last-known position with derived recency fields.
type Position struct {
	SubjectID  domain.SubjectID
	PackageID  domain.PackageID
	Latitude   float64
	Longitude  float64
	CapturedAt time.Time
	Source     string // "live" or "history"
	IsRecent   bool
	MinutesAgo int
}

// Service exposes the tracking pipeline operations to transport code.
type Service struct {
	live    LiveStore
	history HistoryStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs a tracking service with its dependencies.
func New(live LiveStore, history HistoryStore, logger *slog.Logger, m *metrics.Metrics) (*Service, error) {
	if live == nil {
		return nil, fmt.Errorf("live store is required")
	}
	if history == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics are required")
	}
	return &Service{live: live, history: history, logger: logger, metrics: m}, nil
}

// RecordLive writes the subject's current position to the ephemeral cache,
// replacing any prior value and resetting its expiry.
func (s *Service) RecordLive(ctx context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.LiveLocation, error) {
	if !subjectID.Valid() {
		return models.LiveLocation{}, dErrors.New(dErrors.CodeBadRequest, "subject id must be a positive integer")
	}
	loc, err := s.live.Put(ctx, subjectID, packageID, lat, lon)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return models.LiveLocation{}, dErrors.New(dErrors.CodeUnavailable, "live location cache is unavailable")
		}
		return models.LiveLocation{}, dErrors.New(dErrors.CodeInternal, err.Error())
	}
	s.metrics.LiveWritesTotal.Inc()
	return loc, nil
}

// RecordDirect appends a position straight to durable history, bypassing the
// cache. The immediate retention cap is enforced as part of the write.
func (s *Service) RecordDirect(ctx context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.PersistedLocation, error) {
	if !subjectID.Valid() {
		return models.PersistedLocation{}, dErrors.New(dErrors.CodeBadRequest, "subject id must be a positive integer")
	}
	rec, err := s.history.InsertDirect(ctx, subjectID, packageID, lat, lon)
	if err != nil {
		return models.PersistedLocation{}, dErrors.New(dErrors.CodeInternal, err.Error())
	}
	s.metrics.DirectWritesTotal.Inc()
	return rec, nil
}

// LastKnown returns the subject's most recent position, preferring the live
// cache and falling back to durable history. Not-found is a normal empty
// result, reported as a coded not_found error for the transport layer.
func (s *Service) LastKnown(ctx context.Context, subjectID domain.SubjectID) (Position, error) {
	if !subjectID.Valid() {
		return Position{}, dErrors.New(dErrors.CodeBadRequest, "subject id must be a positive integer")
	}
	now := requestcontext.Now(ctx)

	loc, err := s.live.Get(ctx, subjectID)
	switch {
	case err == nil:
		return s.position(loc.SubjectID, loc.PackageID, loc.Latitude, loc.Longitude, loc.CapturedTime(), "live", now), nil
	case errors.Is(err, sentinel.ErrNotFound):
		// Expected once the TTL elapses; fall through to history.
	case errors.Is(err, sentinel.ErrDecode):
		// A corrupt cache entry must not hide the durable record.
		s.logger.WarnContext(ctx, "live location decode failed, falling back to history",
			"subject_id", subjectID,
			"error", err,
		)
	default:
		return Position{}, dErrors.New(dErrors.CodeUnavailable, "live location cache is unavailable")
	}

	recs, err := s.history.MostRecent(ctx, subjectID, 1)
	if err != nil {
		return Position{}, dErrors.New(dErrors.CodeInternal, err.Error())
	}
	if len(recs) == 0 {
		s.metrics.LastKnownMissTotal.Inc()
		return Position{}, dErrors.New(dErrors.CodeNotFound, "no known position for subject")
	}
	rec := recs[0]
	return s.position(rec.SubjectID, rec.PackageID, rec.Latitude, rec.Longitude, rec.CreatedAt, "history", now), nil
}

// History returns the subject's durable records within the window, newest
// first. Zero limit or windowHours select the defaults; the handlers reject
// out-of-range values before calling.
func (s *Service) History(ctx context.Context, subjectID domain.SubjectID, limit, windowHours int) ([]models.PersistedLocation, error) {
	if !subjectID.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subject id must be a positive integer")
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if windowHours == 0 {
		windowHours = DefaultWindowHours
	}
	since := requestcontext.Now(ctx).Add(-time.Duration(windowHours) * time.Hour)

	recs, err := s.history.History(ctx, subjectID, limit, since)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInternal, err.Error())
	}
	s.metrics.HistoryReadsTotal.Inc()
	return recs, nil
}

func (s *Service) position(subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64, capturedAt time.Time, source string, now time.Time) Position {
	age := now.Sub(capturedAt)
	if age < 0 {
		age = 0
	}
	return Position{
		SubjectID:  subjectID,
		PackageID:  packageID,
		Latitude:   lat,
		Longitude:  lon,
		CapturedAt: capturedAt,
		Source:     source,
		IsRecent:   age <= recencyWindow,
		MinutesAgo: int(age / time.Minute),
	}
}
