package service

import (
	"context"
	"time"

	"rumbo/internal/tracking/models"
	"rumbo/pkg/domain"
)

// LiveStore is the ephemeral per-subject position cache.
type LiveStore interface {
	Put(ctx context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.LiveLocation, error)
	Get(ctx context.Context, subjectID domain.SubjectID) (models.LiveLocation, error)
}

// HistoryStore is the durable, retention-bounded location history.
type HistoryStore interface {
	InsertDirect(ctx context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.PersistedLocation, error)
	MostRecent(ctx context.Context, subjectID domain.SubjectID, limit int) ([]models.PersistedLocation, error)
	History(ctx context.Context, subjectID domain.SubjectID, limit int, since time.Time) ([]models.PersistedLocation, error)
}
