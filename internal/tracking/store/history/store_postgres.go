// Package history implements the durable, per-subject bounded location
// history. Two retention policies guard it: the immediate cap enforced
// synchronously on direct writes, and the archival cap enforced in deferred
// batches by the nightly sweep. They are deliberately separate constants;
// they serve different call sites with different write-amplification
// trade-offs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"rumbo/internal/tracking/models"
	"rumbo/pkg/domain"
)

const (
	// Immediate cap: a subject keeps at most this many rows on the direct
	// write path. Enforcement happens before every insert.
	immediateCap = 10
	// Survivors kept when the immediate cap evicts, leaving room for
	// exactly one new row.
	immediateKeep = 9

	// Archival cap: enforcement only triggers once a subject's count
	// exceeds this, so most sweep inserts pay no delete.
	archivalTrigger = 35
	// Rows retained when archival enforcement fires.
	archivalKeep = 30
)

// PostgresStore persists location history in PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
	clock  func() time.Time
}

// PostgresStoreOption configures a PostgresStore instance.
type PostgresStoreOption func(*PostgresStore)

// WithPostgresClock sets the clock function for testability.
func WithPostgresClock(clock func() time.Time) PostgresStoreOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgres constructs a PostgreSQL-backed history store.
func NewPostgres(db *sql.DB, logger *slog.Logger, opts ...PostgresStoreOption) *PostgresStore {
	s := &PostgresStore{
		db:     db,
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// InsertDirect appends a record on the latency-sensitive direct write path,
// enforcing the immediate cap first. Count, eviction, and insert commit as a
// whole; on any storage error nothing happens.
func (s *PostgresStore) InsertDirect(ctx context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.PersistedLocation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PersistedLocation{}, fmt.Errorf("begin direct insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locations WHERE subject_id = $1`, subjectID,
	).Scan(&count); err != nil {
		return models.PersistedLocation{}, fmt.Errorf("count locations for subject %s: %w", subjectID, err)
	}

	if count >= immediateCap {
		// Evict the oldest so immediateKeep survivors plus the new row
		// land exactly on the cap.
		_, err := tx.ExecContext(ctx, `
			DELETE FROM locations
			WHERE id IN (
				SELECT id FROM locations
				WHERE subject_id = $1
				ORDER BY created_at ASC, id ASC
				LIMIT $2
			)`, subjectID, count-immediateKeep)
		if err != nil {
			return models.PersistedLocation{}, fmt.Errorf("evict oldest locations for subject %s: %w", subjectID, err)
		}
	}

	now := s.clock()
	rec := models.PersistedLocation{
		SubjectID: subjectID,
		PackageID: packageID,
		Latitude:  lat,
		Longitude: lon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO locations (subject_id, package_id, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id`,
		subjectID, nullPackage(packageID), lat, lon, now,
	).Scan(&rec.ID); err != nil {
		return models.PersistedLocation{}, fmt.Errorf("insert location for subject %s: %w", subjectID, err)
	}

	if err := tx.Commit(); err != nil {
		return models.PersistedLocation{}, fmt.Errorf("commit direct insert tx: %w", err)
	}
	return rec, nil
}

// InsertFromArchive appends a record copied from the live cache, preserving
// the original capture time as created_at. Archival cap enforcement is
// deferred until the subject's count exceeds the trigger; a cleanup failure
// after a successful insert is logged but never rolls the insert back, the
// next sweep retries it naturally since the count stays elevated.
func (s *PostgresStore) InsertFromArchive(ctx context.Context, loc models.LiveLocation) (models.PersistedLocation, error) {
	now := s.clock()
	rec := models.PersistedLocation{
		SubjectID: loc.SubjectID,
		PackageID: loc.PackageID,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		CreatedAt: loc.CapturedTime(),
		UpdatedAt: now,
	}
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO locations (subject_id, package_id, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		loc.SubjectID, nullPackage(loc.PackageID), loc.Latitude, loc.Longitude, rec.CreatedAt, now,
	).Scan(&rec.ID); err != nil {
		return models.PersistedLocation{}, fmt.Errorf("archive location for subject %s: %w", loc.SubjectID, err)
	}

	count, err := s.CountForSubject(ctx, loc.SubjectID)
	if err != nil {
		s.logger.WarnContext(ctx, "archival cap check failed, record preserved",
			"subject_id", loc.SubjectID,
			"error", err,
		)
		return rec, nil
	}
	if count > archivalTrigger {
		if err := s.enforceArchivalCap(ctx, loc.SubjectID); err != nil {
			s.logger.WarnContext(ctx, "archival cap enforcement failed, record preserved",
				"subject_id", loc.SubjectID,
				"count", count,
				"error", err,
			)
		}
	}
	return rec, nil
}

func (s *PostgresStore) enforceArchivalCap(ctx context.Context, subjectID domain.SubjectID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM locations
		WHERE subject_id = $1
		AND id NOT IN (
			SELECT id FROM locations
			WHERE subject_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)`, subjectID, archivalKeep)
	if err != nil {
		return fmt.Errorf("enforce archival cap for subject %s: %w", subjectID, err)
	}
	return nil
}

// CountForSubject returns the number of durable records for a subject.
func (s *PostgresStore) CountForSubject(ctx context.Context, subjectID domain.SubjectID) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locations WHERE subject_id = $1`, subjectID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count locations for subject %s: %w", subjectID, err)
	}
	return count, nil
}

// MostRecent returns up to limit records for a subject, newest first.
func (s *PostgresStore) MostRecent(ctx context.Context, subjectID domain.SubjectID, limit int) ([]models.PersistedLocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, COALESCE(package_id, 0), latitude, longitude, created_at, updated_at
		FROM locations
		WHERE subject_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent locations for subject %s: %w", subjectID, err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// History returns up to limit records captured at or after since, newest
// first. Each call is finite and restartable; no cursor state is held.
func (s *PostgresStore) History(ctx context.Context, subjectID domain.SubjectID, limit int, since time.Time) ([]models.PersistedLocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, COALESCE(package_id, 0), latitude, longitude, created_at, updated_at
		FROM locations
		WHERE subject_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, subjectID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query location history for subject %s: %w", subjectID, err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

func scanLocations(rows *sql.Rows) ([]models.PersistedLocation, error) {
	var out []models.PersistedLocation
	for rows.Next() {
		var rec models.PersistedLocation
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.PackageID, &rec.Latitude, &rec.Longitude, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location rows: %w", err)
	}
	return out, nil
}

func nullPackage(packageID domain.PackageID) sql.NullInt64 {
	if !packageID.Valid() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(packageID), Valid: true}
}
