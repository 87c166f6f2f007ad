package archive

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/httputil"
	"rumbo/pkg/requestcontext"
	"rumbo/pkg/sentinel"
)

// Handler exposes operational endpoints for the archival sweep.
type Handler struct {
	scheduler *Scheduler
	logger    *slog.Logger
}

// NewHandler constructs an archive handler.
func NewHandler(scheduler *Scheduler, logger *slog.Logger) *Handler {
	return &Handler{scheduler: scheduler, logger: logger}
}

// Register mounts archive endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/archive/run", h.HandleRunNow)
	r.Get("/admin/archive/last", h.HandleLastRun)
}

// SummaryResponse is the HTTP form of a sweep summary.
type SummaryResponse struct {
	Status    string        `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	ElapsedMs int64         `json:"elapsed_ms"`
	Processed int           `json:"processed"`
	Migrated  int           `json:"migrated"`
	Errors    int           `json:"errors"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// FromSummary converts a sweep summary to its HTTP form.
func FromSummary(s Summary) *SummaryResponse {
	return &SummaryResponse{
		Status:    string(s.Status),
		StartedAt: s.StartedAt,
		ElapsedMs: s.Elapsed.Milliseconds(),
		Processed: s.Processed,
		Migrated:  s.Migrated,
		Errors:    s.Errors,
		Failures:  s.Failures,
	}
}

// HandleRunNow handles POST /admin/archive/run requests, triggering a manual
// sweep through the same lock path as the schedule.
func (h *Handler) HandleRunNow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	summary, err := h.scheduler.Trigger(ctx)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "an archival sweep is already in progress"))
			return
		}
		h.logger.ErrorContext(ctx, "manual archival sweep failed",
			"request_id", requestID,
			"error", err,
		)
		if errors.Is(err, sentinel.ErrUnavailable) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "live location cache is unavailable"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, err.Error()))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleLastRun handles GET /admin/archive/last requests.
func (h *Handler) HandleLastRun(w http.ResponseWriter, r *http.Request) {
	last := h.scheduler.LastRun()
	if last == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no archival sweep has run yet"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(*last))
}
