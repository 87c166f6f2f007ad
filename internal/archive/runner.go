// Package archive migrates live cache entries into durable history. The
// sweep never deletes cache entries itself; the cache TTL retires them. A
// re-sweep before expiry re-migrates the same value, which is accepted as
// harmless history noise since archived inserts are not deduplicated.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rumbo/internal/tracking/models"
	"rumbo/internal/tracking/store/live"
	"rumbo/pkg/domain"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rumbo_archive_runs_total",
		Help: "Total number of archival sweep runs by final status",
	}, []string{"status"})
	migratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rumbo_archive_migrated_total",
		Help: "Total number of live locations migrated to durable history",
	})
	itemErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rumbo_archive_item_errors_total",
		Help: "Total number of per-entry failures during archival sweeps",
	})
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rumbo_archive_sweep_duration_seconds",
		Help:    "Wall-clock duration of archival sweeps",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)

// RunStatus is the final state of a sweep.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// defaultItemTimeout bounds each per-entry durable write so one stuck
// connection cannot stall the whole sweep.
const defaultItemTimeout = 5 * time.Second

// ItemFailure records one entry that could not be migrated, with enough
// context to retry manually.
type ItemFailure struct {
	SubjectID domain.SubjectID `json:"subject_id,omitempty"`
	Key       string           `json:"key,omitempty"`
	Reason    string           `json:"reason"`
}

// Summary reports the outcome of one sweep. Per-entry failures keep the run
// in Completed; Failed means the initial cache snapshot itself failed.
type Summary struct {
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Processed int           `json:"processed"`
	Migrated  int           `json:"migrated"`
	Errors    int           `json:"errors"`
	Failures  []ItemFailure `json:"failures,omitempty"`
	Status    RunStatus     `json:"status"`
}

// LiveLister snapshots all currently live cache entries.
type LiveLister interface {
	ListAll(ctx context.Context) (map[domain.SubjectID]models.LiveLocation, []live.DecodeFailure, error)
}

// HistoryArchiver persists one live entry into durable history.
type HistoryArchiver interface {
	InsertFromArchive(ctx context.Context, loc models.LiveLocation) (models.PersistedLocation, error)
}

// Runner executes archival sweeps.
type Runner struct {
	live        LiveLister
	history     HistoryArchiver
	logger      *slog.Logger
	itemTimeout time.Duration
}

// RunnerOption configures a Runner instance.
type RunnerOption func(*Runner)

// WithItemTimeout bounds each per-entry durable write.
func WithItemTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.itemTimeout = d
		}
	}
}

// NewRunner constructs a sweep runner.
func NewRunner(live LiveLister, history HistoryArchiver, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		live:        live,
		history:     history,
		logger:      logger,
		itemTimeout: defaultItemTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run sweeps the live cache into durable history. Partial failure is the
// normal case: every entry is attempted independently and failures are
// counted, not propagated. The returned error is non-nil only when the cache
// snapshot itself fails, in which case the summary status is Failed.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{StartedAt: start}

	entries, decodeFailures, err := r.live.ListAll(ctx)
	if err != nil {
		summary.Status = StatusFailed
		summary.Elapsed = time.Since(start)
		runsTotal.WithLabelValues(string(StatusFailed)).Inc()
		return summary, fmt.Errorf("snapshot live locations: %w", err)
	}

	summary.Processed = len(entries) + len(decodeFailures)

	for _, failure := range decodeFailures {
		summary.Errors++
		summary.Failures = append(summary.Failures, ItemFailure{
			Key:    failure.Key,
			Reason: fmt.Sprintf("decode: %v", failure.Err),
		})
		r.logger.WarnContext(ctx, "skipping undecodable live entry",
			"key", failure.Key,
			"error", failure.Err,
		)
	}

	for _, loc := range sortedBySubject(entries) {
		if err := r.archiveOne(ctx, loc); err != nil {
			summary.Errors++
			summary.Failures = append(summary.Failures, ItemFailure{
				SubjectID: loc.SubjectID,
				Reason:    err.Error(),
			})
			r.logger.WarnContext(ctx, "live entry migration failed",
				"subject_id", loc.SubjectID,
				"error", err,
			)
			continue
		}
		summary.Migrated++
	}

	summary.Elapsed = time.Since(start)
	summary.Status = StatusCompleted

	runsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	migratedTotal.Add(float64(summary.Migrated))
	itemErrorsTotal.Add(float64(summary.Errors))
	sweepDuration.Observe(summary.Elapsed.Seconds())

	r.logger.InfoContext(ctx, "archival sweep finished",
		"processed", summary.Processed,
		"migrated", summary.Migrated,
		"errors", summary.Errors,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return summary, nil
}

func (r *Runner) archiveOne(ctx context.Context, loc models.LiveLocation) error {
	itemCtx, cancel := context.WithTimeout(ctx, r.itemTimeout)
	defer cancel()
	_, err := r.history.InsertFromArchive(itemCtx, loc)
	return err
}

// sortedBySubject fixes the sweep order so logs and failure lists are stable
// run to run.
func sortedBySubject(entries map[domain.SubjectID]models.LiveLocation) []models.LiveLocation {
	out := make([]models.LiveLocation, 0, len(entries))
	for _, loc := range entries {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}
